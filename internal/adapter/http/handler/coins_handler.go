package handler

import (
	"strconv"

	"coin-ledger/internal/adapter/http/dto"
	"coin-ledger/internal/adapter/http/middleware"
	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"
	"coin-ledger/pkg/apperror"
	"coin-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CoinsHandler serves the app-facing coin endpoints. Every route acts on the
// user of the bearer token.
type CoinsHandler struct {
	ledger ports.LedgerService
}

// NewCoinsHandler creates a new CoinsHandler.
func NewCoinsHandler(ledger ports.LedgerService) *CoinsHandler {
	return &CoinsHandler{ledger: ledger}
}

// GetBalance handles GET /api/v1/coins/balance.
func (h *CoinsHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	view, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewBalanceResponse(view))
}

// ListTransactions handles GET /api/v1/coins/transactions.
// Query: limit, direction (credit|debit), cursor.
func (h *CoinsHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params := ports.TransactionListParams{UserID: userID}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		params.Limit = limit
	}

	switch d := domain.Direction(c.Query("direction")); d {
	case "":
	case domain.DirectionCredit, domain.DirectionDebit:
		params.Direction = &d
	default:
		response.Error(c, apperror.Validation("direction must be credit or debit"))
		return
	}

	cursor, err := dto.DecodeCursor(c.Query("cursor"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid cursor"))
		return
	}
	params.Before = cursor

	records, next, err := h.ledger.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, dto.NewTransactionList(records), dto.EncodeCursor(next))
}

// Spend handles POST /api/v1/coins/spend.
func (h *CoinsHandler) Spend(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	rec, err := h.ledger.Spend(c.Request.Context(), ports.SpendRequest{
		UserID: userID,
		Amount: req.Amount,
		Item:   req.Item,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, rec.ID.String())
	response.Created(c, dto.NewTransactionResponse(rec))
}

// ClaimReward handles POST /api/v1/coins/rewards/claim.
func (h *CoinsHandler) ClaimReward(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ClaimRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := h.ledger.ClaimReward(c.Request.Context(), ports.RewardClaimRequest{
		UserID:         userID,
		Reward:         domain.RewardType(req.Reward),
		ReferredUserID: req.ReferredUserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respondCredit(c, res)
}

// respondCredit answers 201 for a new credit and 200 for a replay.
func respondCredit(c *gin.Context, res *ports.CreditResult) {
	c.Set(middleware.CtxResourceID, res.Record.ID.String())
	if res.Replayed {
		response.OK(c, dto.NewCreditResponse(res))
		return
	}
	response.Created(c, dto.NewCreditResponse(res))
}
