package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
	"go.uber.org/zap"
)

// LowConfidenceWarning accompanies comparisons whose online match is uncertain
const LowConfidenceWarning = "비슷한 상품으로 비교했어요. 상품명을 직접 확인해 주세요."

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scanService    *usecase.ScanService
	compareService *usecase.CompareService
	sessions       *SessionManager
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. Nil services answer 501; nil sessions leave the API open.
func NewHandler(
	scanService *usecase.ScanService,
	compareService *usecase.CompareService,
	sessions *SessionManager,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		scanService:    scanService,
		compareService: compareService,
		sessions:       sessions,
		logger:         logger,
	}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

type compareBatchRequest struct {
	Products []domain.CompareRequest `json:"products" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// Scan reads the products on an uploaded price-tag photo
func (h *Handler) Scan(c *gin.Context) {
	if h.scanService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "OCR service not configured"})
		return
	}

	var req domain.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "이미지가 필요합니다."})
		return
	}

	result, err := h.scanService.Scan(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) && result != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": result.Message,
				"usage": result.Usage,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Extract runs price extraction over text the client already has
func (h *Handler) Extract(c *gin.Context) {
	if h.scanService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "OCR service not configured"})
		return
	}

	var req domain.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "텍스트가 필요합니다."})
		return
	}

	c.JSON(http.StatusOK, h.scanService.ExtractText(req.Text))
}

// Compare looks up the online price of one product
func (h *Handler) Compare(c *gin.Context) {
	if h.compareService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price comparison not configured"})
		return
	}

	var req domain.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "상품명이 필요합니다."})
		return
	}

	result, err := h.compareService.Compare(c.Request.Context(), &req)
	if err != nil {
		// A weak match still returns the offer, with a warning
		if errors.Is(err, domain.ErrLowConfidence) && result != nil {
			c.JSON(http.StatusOK, gin.H{
				"data":    result,
				"warning": LowConfidenceWarning,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// CompareBatch compares several products; failures are reported per item
func (h *Handler) CompareBatch(c *gin.Context) {
	if h.compareService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price comparison not configured"})
		return
	}

	var req compareBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "비교할 상품 목록이 필요합니다."})
		return
	}

	outcomes, err := h.compareService.CompareAll(c.Request.Context(), req.Products)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

// Usage reports the monthly OCR quota
func (h *Handler) Usage(c *gin.Context) {
	if h.scanService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "OCR service not configured"})
		return
	}

	status, err := h.scanService.Usage(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Login checks the shared password and sets the session cookie
func (h *Handler) Login(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "비밀번호를 입력해 주세요."})
		return
	}

	if !h.sessions.CheckPassword(req.Password) {
		h.logger.Warn("login failed", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "비밀번호가 올바르지 않습니다."})
		return
	}

	token, err := h.sessions.Issue()
	if err != nil {
		h.logger.Error("sign session token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.sessions.SetCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// AuthStatus reports whether the caller holds a valid session
func (h *Handler) AuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.sessions == nil || h.sessions.Authenticated(c)})
}

// Logout clears the session cookie
func (h *Handler) Logout(c *gin.Context) {
	if h.sessions != nil {
		h.sessions.ClearCookie(c)
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "internal server error"

	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidPrice):
		status, message = http.StatusBadRequest, "잘못된 요청입니다."
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "인증이 필요합니다."
	case errors.Is(err, domain.ErrProductNotFound):
		status, message = http.StatusNotFound, "온라인에서 상품을 찾지 못했습니다."
	case errors.Is(err, domain.ErrQuotaExceeded):
		status, message = http.StatusTooManyRequests, "이번 달 사용량을 모두 사용했습니다."
	case errors.Is(err, domain.ErrRateLimited):
		status, message = http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
	case errors.Is(err, domain.ErrShoppingAPIFailure):
		status, message = http.StatusBadGateway, "Shopping API temporarily unavailable"
	case errors.Is(err, domain.ErrVisionAPIFailure):
		status, message = http.StatusBadGateway, "Vision API temporarily unavailable"
	case errors.Is(err, domain.ErrProviderNotConfigured):
		status, message = http.StatusServiceUnavailable, "provider not configured"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "upstream timeout"
	case errors.Is(err, context.Canceled):
		// client went away
		status, message = 499, "request cancelled"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
