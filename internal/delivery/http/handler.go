package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
	"github.com/agroprecios/backend/internal/usecase"
)

// Version is reported by the health check
const Version = "1.0.0"

// PipelineRunner runs the fetch and sync pipeline
type PipelineRunner interface {
	Run(ctx context.Context, retailers []string) (*usecase.RunSummary, error)
	Retailers() []string
}

// RecordAssembler turns a raw listing into a canonical record
type RecordAssembler interface {
	Assemble(listing domain.RawListing, observedAt time.Time) (domain.ProductRecord, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline  PipelineRunner
	assembler RecordAssembler
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline PipelineRunner, assembler RecordAssembler, log *zap.Logger) *Handler {
	return &Handler{
		pipeline:  pipeline,
		assembler: assembler,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// RunRequest is the optional body of a pipeline run
type RunRequest struct {
	Retailers []string `json:"retailers"`
}

// ClassifyRequest is a single listing to preview
type ClassifyRequest struct {
	Retailer string `json:"retailer"`
	Name     string `json:"name"`
	Price    any    `json:"price"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "agroprecios-backend",
		"version": Version,
	})
}

// ListRetailers returns the retailers a run can target
func (h *Handler) ListRetailers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"retailers": h.pipeline.Retailers()})
}

// RunPipeline triggers one pipeline run and returns its summary
func (h *Handler) RunPipeline(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	// the run outlives a client that disconnects
	ctx := context.WithoutCancel(c.Request.Context())

	summary, err := h.pipeline.Run(ctx, req.Retailers)
	if err != nil {
		status := runErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("pipeline run failed", zap.Error(err))
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Classify assembles one listing without storing it
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: domain.ErrInvalidRequest.Error() + ": name is required"})
		return
	}

	retailer := req.Retailer
	if retailer == "" {
		retailer = "preview"
	}

	record, err := h.assembler.Assemble(domain.RawListing{
		Retailer: retailer,
		Name:     req.Name,
		RawPrice: req.Price,
	}, h.now())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  err.Error(),
			Reason: usecase.RejectionReason(err),
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrUnknownRetailer), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
