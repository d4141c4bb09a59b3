package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"herald/internal/store"
	"herald/pkg/logging"
	"herald/pkg/middleware"
)

// IntegrationRequest is the session handed over by the external OAuth flow.
type IntegrationRequest struct {
	AccessToken string     `json:"access_token"`
	AuthorURN   string     `json:"author_urn"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// IntegrationHandler stores the platform session for the configured
// organization and channel.
type IntegrationHandler struct {
	integrations IntegrationWriter
	orgID        string
	channel      string
	logger       logging.Logger
}

func NewIntegrationHandler(integrations IntegrationWriter, orgID, channel string, logger logging.Logger) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, orgID: orgID, channel: channel, logger: logger}
}

// Put handles PUT /api/integration and always leaves the session connected.
func (h *IntegrationHandler) Put(c *gin.Context) {
	var req IntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	req.AuthorURN = strings.TrimSpace(req.AuthorURN)
	if req.AccessToken == "" || req.AuthorURN == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_token and author_urn are required"})
		return
	}
	if !strings.HasPrefix(req.AuthorURN, "urn:li:") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author_urn must be a LinkedIn URN"})
		return
	}

	in := &store.Integration{
		OrganizationID: h.orgID,
		Channel:        h.channel,
		AccessToken:    req.AccessToken,
		TokenExpiresAt: req.ExpiresAt,
		AuthorURN:      req.AuthorURN,
	}
	if err := h.integrations.SaveIntegration(c.Request.Context(), in); err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to save integration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save integration"})
		return
	}

	middleware.GetContextLogger(c, h.logger).WithFields(logging.Fields{
		"organization_id": h.orgID,
		"channel":         h.channel,
		"author_urn":      in.AuthorURN,
	}).Info("Integration connected")

	resp := gin.H{
		"organization_id": in.OrganizationID,
		"channel":         in.Channel,
		"author_urn":      in.AuthorURN,
		"status":          in.Status,
		"updated_at":      in.UpdatedAt,
	}
	if in.TokenExpiresAt != nil {
		resp["expires_at"] = in.TokenExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}
