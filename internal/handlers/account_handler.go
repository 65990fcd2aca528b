package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/services"
)

// AccountHandler handles cash deposits.
type AccountHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(userService services.UserServicer, auditService services.AuditServicer) *AccountHandler {
	return &AccountHandler{userService: userService, auditService: auditService}
}

// AddBalanceRequest is the payload of a deposit.
type AddBalanceRequest struct {
	UserID string          `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required,positive_decimal" swaggertype:"number"`
}

// AddBalanceResponse reports the credited amount and the new balance.
type AddBalanceResponse struct {
	Message     string          `json:"message"`
	Balance     decimal.Decimal `json:"balance" swaggertype:"number"`
	AmountAdded decimal.Decimal `json:"amountAdded" swaggertype:"number"`
}

// AddBalance credits simulated cash to an account.
// @Summary     Add balance
// @Description Deposit simulated cash. The amount must be positive and within the per-request maximum.
// @Tags        account
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AddBalanceRequest true "Deposit"
// @Success     200 {object} AddBalanceResponse
// @Failure     400 {object} ErrorResponse "Invalid amount"
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Router      /add-balance [post]
func (h *AccountHandler) AddBalance(c *gin.Context) {
	var req AddBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	userID, err := authorizedUserID(c, req.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	amount := req.Amount.Round(2)
	user, err := h.userService.AddBalance(c.Request.Context(), userID, amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, "ADD_BALANCE", "user", user.ID, c.ClientIP(), map[string]interface{}{
		"amount":  amount.String(),
		"balance": user.Balance.String(),
	})

	c.JSON(http.StatusOK, AddBalanceResponse{
		Message:     fmt.Sprintf("Successfully added %s to your account", amount.StringFixed(2)),
		Balance:     user.Balance,
		AmountAdded: amount,
	})
}
