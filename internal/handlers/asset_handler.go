package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/history"
	"papertrade/internal/models"
	"papertrade/internal/services"
)

// AssetHandler serves the asset catalog, price history and system stats.
type AssetHandler struct {
	assetService services.AssetServicer
	auditService services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, auditService: auditService}
}

// CreateAssetRequest is the payload for adding a catalog entry.
type CreateAssetRequest struct {
	Symbol   string          `json:"symbol" binding:"required,max=32"`
	Name     string          `json:"name" binding:"required"`
	Category string          `json:"category" binding:"required,asset_category"`
	Price    decimal.Decimal `json:"price" binding:"required,positive_decimal,max_places=2" swaggertype:"number"`
	Volume   int64           `json:"volume" binding:"min=0"`
}

// DeleteAssetResponse acknowledges a deletion.
type DeleteAssetResponse struct {
	Message string `json:"message"`
	AssetID string `json:"assetId"`
}

// AssetFilter holds the optional list filters.
type AssetFilter struct {
	Category string `form:"category" binding:"omitempty,asset_category"`
}

// ListAssets returns every asset, optionally filtered by category.
// @Summary     List assets
// @Description List all simulated stocks and mutual funds
// @Tags        assets
// @Produce     json
// @Param       category query string false "stock or fund"
// @Success     200 {array}  models.Asset
// @Failure     400 {object} ErrorResponse "Invalid category"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	var filter AssetFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	assets, err := h.assetService.ListAssets(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	if filter.Category != "" {
		category, _ := models.ParseAssetCategory(filter.Category)
		filtered := make([]models.Asset, 0, len(assets))
		for _, a := range assets {
			if a.Category == category {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	if assets == nil {
		assets = []models.Asset{}
	}

	c.JSON(http.StatusOK, assets)
}

// GetAsset returns one asset by ID or symbol.
// @Summary     Get asset
// @Tags        assets
// @Produce     json
// @Param       assetId path string true "Asset ID or symbol"
// @Success     200 {object} models.Asset
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{assetId} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	asset, err := h.assetService.GetAsset(c.Request.Context(), c.Param("assetId"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// CreateAsset adds an asset to the catalog.
// @Summary     Create asset
// @Description Add a stock or fund. Its price is also its reference price and first history sample.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       request body CreateAssetRequest true "Asset"
// @Success     201 {object} models.Asset
// @Failure     400 {object} ErrorResponse "Invalid input or duplicate symbol"
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Router      /admin/assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	category, _ := models.ParseAssetCategory(req.Category)

	asset, err := h.assetService.CreateAsset(c.Request.Context(), services.NewAsset{
		Symbol:   req.Symbol,
		Name:     req.Name,
		Category: category,
		Price:    req.Price,
		Volume:   req.Volume,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "CREATE_ASSET", "asset", asset.ID, c.ClientIP(), map[string]interface{}{
		"symbol": asset.Symbol,
		"price":  asset.Price.String(),
	})
	c.JSON(http.StatusCreated, asset)
}

// DeleteAsset removes an asset from the catalog. Holdings of it are dropped
// by the next update cycle.
// @Summary     Delete asset
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Param       assetId path string true "Asset ID or symbol"
// @Success     200 {object} DeleteAssetResponse
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /admin/assets/{assetId} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	asset, err := h.assetService.DeleteAsset(c.Request.Context(), c.Param("assetId"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "DELETE_ASSET", "asset", asset.ID, c.ClientIP(), map[string]interface{}{
		"symbol": asset.Symbol,
	})
	c.JSON(http.StatusOK, DeleteAssetResponse{Message: "Asset deleted", AssetID: asset.ID})
}

// GetGraphData returns the retained price history of an asset, oldest first.
// @Summary     Price history
// @Description Ordered price samples for charting. limit keeps the most recent N.
// @Tags        assets
// @Produce     json
// @Param       assetId path  string true  "Asset ID or symbol"
// @Param       limit   query int    false "Most recent N samples"
// @Success     200 {array}  history.Sample
// @Failure     400 {object} ErrorResponse "Invalid limit"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /graphdata/{assetId} [get]
func (h *AssetHandler) GetGraphData(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	samples, err := h.assetService.GetPriceHistory(c.Request.Context(), c.Param("assetId"), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if samples == nil {
		samples = []history.Sample{}
	}
	c.JSON(http.StatusOK, samples)
}

// GetStats returns system-wide statistics.
// @Summary     System statistics
// @Tags        stats
// @Produce     json
// @Success     200 {object} services.Stats
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /stats [get]
func (h *AssetHandler) GetStats(c *gin.Context) {
	stats, err := h.assetService.GetStats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
