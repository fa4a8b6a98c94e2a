package messages

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/pkg/errors"
	"lyftr/pkg/middleware"
)

type BaseHandler struct {
	Service *Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "request error", "error", err, "path", c.Request.URL.Path)
		_ = c.Error(err)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
	signatureHeader string
	maxBodyBytes    int64
}

func NewHandler(service *Service, signatureHeader string, maxBodyBytes int64, log logger.Logger) *Handler {
	if signatureHeader == "" {
		signatureHeader = constants.SignatureHeader
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
		signatureHeader: signatureHeader,
		maxBodyBytes:    maxBodyBytes,
	}
}

// RegisterRoutes mounts the webhook, query and stats endpoints. Extra
// middleware applies to /webhook only.
func (h *Handler) RegisterRoutes(router gin.IRouter, webhookMiddleware ...gin.HandlerFunc) {
	router.POST("/webhook", append(webhookMiddleware, h.Webhook)...)
	router.GET("/messages", h.ListMessages)
	router.GET("/stats", h.GetStats)
}

// Webhook acknowledges created and duplicate deliveries identically.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		h.Logger.WarnwCtx(c.Request.Context(), "failed to read webhook body", "error", err)
	}

	signatureValue, present := c.Request.Header[http.CanonicalHeaderKey(h.signatureHeader)]
	req := IngestRequest{
		Body:             body,
		SignaturePresent: present,
		BodyIncomplete:   err != nil || int64(len(body)) > h.maxBodyBytes,
	}
	if present && len(signatureValue) > 0 {
		req.Signature = signatureValue[0]
	}

	result, err := h.Service.Ingest(c.Request.Context(), req)

	c.Set(middleware.KeyResult, result.Outcome.String())
	if result.MessageID != "" {
		c.Set(middleware.KeyMessageID, result.MessageID)
	}
	if result.Outcome.Accepted() {
		c.Set(middleware.KeyDup, result.Outcome == OutcomeDuplicate)
	}

	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, AckResponse{Status: "ok"})
}

// RateLimited is the rejection hook for the webhook rate limiter.
func (h *Handler) RateLimited(c *gin.Context) {
	c.Set(middleware.KeyResult, OutcomeRateLimited.String())
	h.Service.RecordRateLimited()
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit, offset, violations := parsePagination(c)

	var filter Filter
	if from, ok := c.GetQuery("from"); ok {
		filter.From = &from
	}
	if since, ok := c.GetQuery("since"); ok {
		normalized, violation := NormalizeSince(since)
		if violation != nil {
			violations = append(violations, *violation)
		} else {
			filter.Since = &normalized
		}
	}
	if q, ok := c.GetQuery("q"); ok {
		filter.Query = &q
	}

	if len(violations) > 0 {
		h.HandleError(c, errors.ErrValidation.WithDetail(errors.DetailErrors, violations))
		return
	}

	result, err := h.Service.Query(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewMessageListResponse(result, limit, offset))
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.Service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parsePagination(c *gin.Context) (int, int, []Violation) {
	var violations []Violation

	limit := constants.DefaultLimit
	if raw, ok := c.GetQuery("limit"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil || v < constants.MinLimit || v > constants.MaxLimit {
			violations = append(violations, Violation{
				Field:   "limit",
				Message: "must be an integer between " + strconv.Itoa(constants.MinLimit) + " and " + strconv.Itoa(constants.MaxLimit),
			})
		} else {
			limit = v
		}
	}

	offset := constants.DefaultOffset
	if raw, ok := c.GetQuery("offset"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			violations = append(violations, Violation{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			offset = v
		}
	}

	return limit, offset, violations
}
