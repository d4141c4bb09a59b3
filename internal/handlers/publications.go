package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"herald/internal/pipeline"
	"herald/internal/store"
	"herald/pkg/logging"
	"herald/pkg/middleware"
)

// PublishRequest is the body of POST /api/publications.
type PublishRequest struct {
	ContentItemID string `json:"content_item_id"`
	Force         bool   `json:"force"`
}

// PublishResponse mirrors pipeline.Result. Retryable is set only on failures
// that may succeed later.
type PublishResponse struct {
	Success        bool   `json:"success"`
	AlreadyPosted  bool   `json:"already_posted,omitempty"`
	ExternalPostID string `json:"external_post_id,omitempty"`
	CanonicalURL   string `json:"canonical_url,omitempty"`
	Status         string `json:"status"`
	Retryable      bool   `json:"retryable,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PublicationHandler serves publish and status requests for one channel.
type PublicationHandler struct {
	publisher Publisher
	records   RecordReader
	channel   string
	logger    logging.Logger
}

func NewPublicationHandler(publisher Publisher, records RecordReader, channel string, logger logging.Logger) *PublicationHandler {
	return &PublicationHandler{
		publisher: publisher,
		records:   records,
		channel:   channel,
		logger:    logger,
	}
}

// StatusCode maps a pipeline outcome to the HTTP status of the invocation.
func StatusCode(outcome pipeline.Outcome) int {
	switch outcome {
	case pipeline.OutcomePosted, pipeline.OutcomeSkippedAlreadyPosted:
		return http.StatusOK
	case pipeline.OutcomeContentMissing:
		return http.StatusNotFound
	case pipeline.OutcomeNeedsReauth, pipeline.OutcomePublishInProgress:
		return http.StatusConflict
	case pipeline.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case pipeline.OutcomeGenerationFailed, pipeline.OutcomeNetworkError:
		return http.StatusServiceUnavailable
	case pipeline.OutcomePlatformRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Publish handles POST /api/publications.
func (h *PublicationHandler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PublishResponse{Status: "invalid_request", Error: "Invalid request format"})
		return
	}
	req.ContentItemID = strings.TrimSpace(req.ContentItemID)
	if req.ContentItemID == "" {
		c.JSON(http.StatusBadRequest, PublishResponse{Status: "invalid_request", Error: "content_item_id is required"})
		return
	}

	res, err := h.publisher.Publish(c.Request.Context(), pipeline.Request{
		ContentItemID: req.ContentItemID,
		Force:         req.Force,
	})
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithFields(logging.Fields{
			"content_item_id": req.ContentItemID,
			"outcome":         res.Outcome,
		}).Debug("Publish returned failure")
	}

	c.JSON(StatusCode(res.Outcome), PublishResponse{
		Success:        res.Success(),
		AlreadyPosted:  res.AlreadyPosted,
		ExternalPostID: res.ExternalPostID,
		CanonicalURL:   res.CanonicalURL,
		Status:         string(res.Outcome),
		Retryable:      res.Outcome.Retryable(),
		Attempts:       res.Attempts,
		Error:          res.Error,
	})
}

// Get handles GET /api/publications/:content_item_id.
func (h *PublicationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("content_item_id"))
	rec, err := h.records.Get(c.Request.Context(), h.channel, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
		return
	}
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).WithField("content_item_id", id).Error("Failed to load publication")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load publication"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
