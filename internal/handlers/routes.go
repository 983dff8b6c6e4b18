package handlers

import (
	"net/http"
	"time"

	"growth-ledger/internal/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the public and operator endpoints on router
func RegisterRoutes(router *gin.Engine, growthHandler *GrowthHandler, adminHandler *AdminHandler, signer *auth.TokenSigner) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/identity/resolve", growthHandler.ResolveIdentity)
		api.POST("/waitlist/join", growthHandler.JoinWaitlist)
		api.GET("/referral/token", growthHandler.GetReferralToken)
	}

	// Operator routes (admin bearer token)
	admin := router.Group("/api/admin")
	admin.Use(auth.AdminMiddleware(signer))
	{
		admin.PUT("/apps/:app_id/policy", adminHandler.UpsertPolicy)
		admin.POST("/apps/:app_id/master-token", adminHandler.IssueMasterToken)
		admin.POST("/invites/run", adminHandler.RunInvites)
		admin.GET("/identities/:id/ledger", adminHandler.GetLedger)
	}
}
