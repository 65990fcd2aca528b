package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/services"
	"papertrade/internal/valuation"
)

// PortfolioHandler serves account valuations and snapshot history.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// PortfolioResponse is an account with its valid holdings and live valuation.
type PortfolioResponse struct {
	UserID   string           `json:"userId"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Balance  decimal.Decimal  `json:"balance"`
	Holdings []models.Holding `json:"portfolio"`
	valuation.Aggregates
	ValuedAt *time.Time `json:"valuedAt,omitempty"`
}

func newPortfolioResponse(p *services.Portfolio) PortfolioResponse {
	holdings := p.Holdings
	if holdings == nil {
		holdings = []models.Holding{}
	}
	return PortfolioResponse{
		UserID:     p.User.ID,
		Username:   p.User.Username,
		Email:      p.User.Email,
		Balance:    p.User.Balance,
		Holdings:   holdings,
		Aggregates: p.Aggregates,
		ValuedAt:   p.User.ValuedAt,
	}
}

// GetPortfolio returns the account with holdings valued at current prices.
// @Summary     Get portfolio
// @Description Holdings (with asset populated) and aggregates at current prices
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       userId path string true "User ID"
// @Success     200 {object} PortfolioResponse
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /portfolio/{userId} [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	userID, err := authorizedUserID(c, c.Param("userId"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	p, err := h.portfolioService.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPortfolioResponse(p))
}

// GetHistory returns recorded valuation snapshots, newest first.
// @Summary     Portfolio history
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       userId    path  string true  "User ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PortfolioSnapshot]
// @Failure     400 {object} ErrorResponse "Invalid pagination"
// @Failure     403 {object} ErrorResponse "Token belongs to another user"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /portfolio/{userId}/history [get]
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	userID, err := authorizedUserID(c, c.Param("userId"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	page.Defaults()

	result, err := h.portfolioService.GetSnapshots(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
