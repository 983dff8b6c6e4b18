package handlers

import (
	"log"
	"net/http"
	"strconv"

	"growth-ledger/internal/auth"
	"growth-ledger/internal/models"
	"growth-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	growthService     *services.GrowthService
	policyService     *services.PolicyService
	invitationService *services.InvitationService
}

func NewAdminHandler(
	growthService *services.GrowthService,
	policyService *services.PolicyService,
	invitationService *services.InvitationService,
) *AdminHandler {
	return &AdminHandler{
		growthService:     growthService,
		policyService:     policyService,
		invitationService: invitationService,
	}
}

// UpsertPolicy creates or replaces an app's growth policy
func (h *AdminHandler) UpsertPolicy(c *gin.Context) {
	var policy models.AppPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	policy.AppID = c.Param("app_id")

	if err := h.policyService.UpsertPolicy(c.Request.Context(), &policy); err != nil {
		respondError(c, err)
		return
	}

	subject, _ := auth.GetAdminSubject(c)
	log.Printf("[Admin] %s updated policy for app %s", subject, policy.AppID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    policy,
	})
}

// IssueMasterToken signs a token for the app's master referral code
func (h *AdminHandler) IssueMasterToken(c *gin.Context) {
	token, err := h.growthService.IssueMasterToken(c.Request.Context(), c.Param("app_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    token,
	})
}

// RunInvites triggers an invitation batch for one app or for every
// auto-invite app when no app_id is given
func (h *AdminHandler) RunInvites(c *gin.Context) {
	var req struct {
		AppID string `json:"app_id"`
		Limit int    `json:"limit" binding:"gte=0"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.AppID == "" {
		results, err := h.invitationService.RunBatch(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
		return
	}

	policy, err := h.policyService.GetPolicy(c.Request.Context(), req.AppID)
	if err != nil {
		respondError(c, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = policy.DailyInviteQuota
	}

	result, err := h.invitationService.InviteApp(c.Request.Context(), policy, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    []services.BatchResult{*result},
	})
}

// GetLedger returns an identity's balance and recent credit entries
func (h *AdminHandler) GetLedger(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid identity ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	view, err := h.growthService.Ledger(c.Request.Context(), identityID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    view,
	})
}
