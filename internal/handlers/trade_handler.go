package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/metrics"
	"papertrade/internal/models"
	"papertrade/internal/services"
	"papertrade/internal/valuation"
)

// TradeHandler executes trades and serves the transaction ledger.
type TradeHandler struct {
	tradeService services.TradeServicer
	auditService services.AuditServicer
	metrics      *metrics.Metrics
}

// NewTradeHandler creates a new TradeHandler. m may be nil.
func NewTradeHandler(tradeService services.TradeServicer, auditService services.AuditServicer, m *metrics.Metrics) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, auditService: auditService, metrics: m}
}

// TradeRequest is the payload of a buy or sell.
type TradeRequest struct {
	UserID   string          `json:"userId" binding:"required"`
	AssetID  string          `json:"assetId" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required,positive_decimal,max_places=4" swaggertype:"number"`
}

// TradeResponse describes an executed trade and the account afterwards.
type TradeResponse struct {
	Message    string               `json:"message"`
	Balance    decimal.Decimal      `json:"balance" swaggertype:"number"`
	TotalCost  *decimal.Decimal     `json:"totalCost,omitempty" swaggertype:"number"`
	TotalValue *decimal.Decimal     `json:"totalValue,omitempty" swaggertype:"number"`
	ProfitLoss *decimal.Decimal     `json:"profitLoss,omitempty" swaggertype:"number"`
	Quantity   decimal.Decimal      `json:"quantity" swaggertype:"number"`
	Price      decimal.Decimal      `json:"price" swaggertype:"number"`
	AssetType  models.AssetCategory `json:"assetType"`
	// Holding is omitted when a sell closed the position.
	Holding   *models.Holding      `json:"holding,omitempty"`
	Portfolio valuation.Aggregates `json:"portfolio"`
}

// Buy purchases an asset at its current price.
// @Summary     Buy
// @Description Debit quantity × current price and add to the holding
// @Tags        trading
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TradeRequest true "Trade"
// @Success     200 {object} TradeResponse
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient balance"
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User or asset not found"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Router      /buy [post]
func (h *TradeHandler) Buy(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.tradeService.Buy(c.Request.Context(), req.UserID, req.AssetID, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.record(c, result)

	resp := newTradeResponse("bought", result)
	resp.TotalCost = &result.Transaction.Total
	c.JSON(http.StatusOK, resp)
}

// Sell sells part or all of a holding at the current price.
// @Summary     Sell
// @Description Credit quantity × current price and reduce the holding
// @Tags        trading
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TradeRequest true "Trade"
// @Success     200 {object} TradeResponse
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient quantity"
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User or asset not found"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Router      /sell [post]
func (h *TradeHandler) Sell(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.tradeService.Sell(c.Request.Context(), req.UserID, req.AssetID, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.record(c, result)

	resp := newTradeResponse("sold", result)
	resp.TotalValue = &result.Transaction.Total
	resp.ProfitLoss = &result.ProfitLoss
	c.JSON(http.StatusOK, resp)
}

// GetTransactions returns the most recent trades of a user, newest first.
// @Summary     Transactions
// @Tags        trading
// @Produce     json
// @Security    BearerAuth
// @Param       userId path  string true  "User ID"
// @Param       limit  query int    false "Maximum entries (default 50)"
// @Success     200 {array}  models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid limit"
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /transactions/{userId} [get]
func (h *TradeHandler) GetTransactions(c *gin.Context) {
	userID, err := authorizedUserID(c, c.Param("userId"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txns, err := h.tradeService.GetTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	c.JSON(http.StatusOK, txns)
}

func (h *TradeHandler) bind(c *gin.Context) (*TradeRequest, bool) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return nil, false
	}
	if _, err := authorizedUserID(c, req.UserID); err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return &req, true
}

func (h *TradeHandler) record(c *gin.Context, result *services.TradeResult) {
	txn := result.Transaction
	h.metrics.RecordTrade(string(txn.Side), string(result.Asset.Category))
	h.auditService.Log(result.User.ID, strings.ToUpper(string(txn.Side)), "transaction", txn.ID, c.ClientIP(), map[string]interface{}{
		"asset_id": result.Asset.ID,
		"symbol":   result.Asset.Symbol,
		"quantity": txn.Quantity.String(),
		"price":    txn.Price.String(),
		"total":    txn.Total.String(),
	})
}

func newTradeResponse(verb string, result *services.TradeResult) TradeResponse {
	txn := result.Transaction
	return TradeResponse{
		Message:   fmt.Sprintf("Successfully %s %s %s of %s", verb, txn.Quantity.String(), unitNoun(result.Asset.Category), result.Asset.Name),
		Balance:   result.User.Balance,
		Quantity:  txn.Quantity,
		Price:     txn.Price,
		AssetType: result.Asset.Category,
		Holding:   result.Holding,
		Portfolio: valuation.FromUser(result.User),
	}
}

func unitNoun(category models.AssetCategory) string {
	if category == models.AssetCategoryStock {
		return "shares"
	}
	return "units"
}
