package scoring

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/ewarisk/internal/validation"
)

// Handler provides HTTP endpoints for risk scoring.
type Handler struct {
	svc *Service
}

// NewHandler creates a new scoring handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the versioned scoring endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
	r.POST("/predict/batch", h.PredictBatch)
	r.GET("/contract", h.GetContract)
}

// RegisterLegacyRoutes keeps the unversioned predict path working.
func (h *Handler) RegisterLegacyRoutes(r gin.IRoutes) {
	r.POST("/predict", h.Predict)
}

// BatchRequest is the body of POST /v1/predict/batch.
type BatchRequest struct {
	Requests []Request `json:"requests"`
}

// BatchResult is one entry of a batch response.
type BatchResult struct {
	Index      int                         `json:"index"`
	EmployeeID string                      `json:"employee_id"`
	Assessment *RiskAssessment             `json:"assessment,omitempty"`
	Error      string                      `json:"error,omitempty"`
	Message    string                      `json:"message,omitempty"`
	Details    validation.ValidationErrors `json:"details,omitempty"`
}

// Predict scores a single employee.
// POST /v1/predict
func (h *Handler) Predict(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	assessment, err := h.svc.Assess(c.Request.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// PredictBatch scores up to MaxBatchSize employees.
// POST /v1/predict/batch
func (h *Handler) PredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	items, err := h.svc.AssessBatch(c.Request.Context(), req.Requests)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_batch_size",
			"message": err.Error(),
		})
		return
	}

	results := make([]BatchResult, len(items))
	for i, item := range items {
		results[i] = BatchResult{
			Index:      item.Index,
			EmployeeID: item.EmployeeID,
			Assessment: item.Assessment,
		}
		if item.Err != nil {
			_, body := errorResponse(item.Err)
			results[i].Error, _ = body["error"].(string)
			results[i].Message, _ = body["message"].(string)
			results[i].Details, _ = body["details"].(validation.ValidationErrors)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// GetContract describes the feature contract and the loaded model.
// GET /v1/contract
func (h *Handler) GetContract(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contract":   h.svc.Contract().Schema(),
		"model":      h.svc.Classifier().Name(),
		"thresholds": h.svc.Thresholds(),
	})
}

func badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "request_too_large",
			"message": "Request body exceeds the size limit",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "Request body must be a JSON object: " + err.Error(),
	})
}

// errorResponse maps service errors to an HTTP status and body.
func errorResponse(err error) (int, gin.H) {
	var verrs validation.ValidationErrors
	var serr *ScoringError
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": verrs.Error(),
			"details": verrs,
		}
	case errors.As(err, &serr):
		return http.StatusBadGateway, gin.H{
			"error":   "scoring_failed",
			"message": "The risk model could not score this request",
		}
	default:
		return http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		}
	}
}
