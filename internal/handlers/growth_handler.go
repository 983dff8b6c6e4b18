package handlers

import (
	"net/http"

	"growth-ledger/internal/models"
	"growth-ledger/internal/services"

	"github.com/gin-gonic/gin"
)

type GrowthHandler struct {
	growthService *services.GrowthService
}

func NewGrowthHandler(growthService *services.GrowthService) *GrowthHandler {
	return &GrowthHandler{
		growthService: growthService,
	}
}

func auditContext(c *gin.Context) models.AuditContext {
	return models.AuditContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// ResolveIdentity resolves the caller, applies an optional claim and
// returns balance and admission
func (h *GrowthHandler) ResolveIdentity(c *gin.Context) {
	var req models.ResolveIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.growthService.ResolveIdentity(c.Request.Context(), &req, auditContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// JoinWaitlist captures an email and places it on the waitlist
func (h *GrowthHandler) JoinWaitlist(c *gin.Context) {
	var req models.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.growthService.JoinWaitlist(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"status":   entry.Status,
			"position": entry.Position,
		},
	})
}

// GetReferralToken returns a signed, shareable referral token for the caller
func (h *GrowthHandler) GetReferralToken(c *gin.Context) {
	appID := c.Query("app_id")
	fingerprint := c.Query("fingerprint")

	token, err := h.growthService.IssueReferralToken(c.Request.Context(), appID, fingerprint)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    token,
	})
}
