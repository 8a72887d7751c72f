package handler

import (
	"coin-ledger/internal/adapter/http/dto"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"
	"coin-ledger/pkg/apperror"
	"coin-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// InternalHandler serves the HMAC-authenticated service-to-service endpoints.
type InternalHandler struct {
	ledger ports.LedgerService
	jobs   ports.JobService
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(ledger ports.LedgerService, jobs ports.JobService) *InternalHandler {
	return &InternalHandler{ledger: ledger, jobs: jobs}
}

// CreditPurchase handles POST /internal/v1/purchases. The caller has already
// verified the store receipt.
func (h *InternalHandler) CreditPurchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.ledger.CreditPurchase(c.Request.Context(), ports.PurchaseRequest{
		UserID:        req.UserID,
		PackageID:     req.PackageID,
		PurchaseToken: req.PurchaseToken,
		Platform:      domain.Platform(req.Platform),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respondCredit(c, res)
}

// Credit handles POST /internal/v1/credits.
func (h *InternalHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.ledger.Credit(c.Request.Context(), req.ToPort())
	if err != nil {
		response.Error(c, err)
		return
	}

	respondCredit(c, res)
}

// RunJob handles POST /internal/v1/jobs/:job and runs the job synchronously.
func (h *InternalHandler) RunJob(c *gin.Context) {
	job := domain.JobName(c.Param("job"))
	if !job.Valid() {
		response.Error(c, apperror.ErrNotFound("job"))
		return
	}

	summary, err := h.jobs.Run(c.Request.Context(), job)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewJobSummaryResponse(summary))
}
