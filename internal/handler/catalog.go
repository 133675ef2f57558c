package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/apierror"
	"storefront/internal/dto"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the storefront's read-only product endpoints.
// None of them has side effects.
type CatalogHandler struct {
	svc service.CatalogService
}

func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// Pricing handles GET /v1/products/:id/pricing.
func (h *CatalogHandler) Pricing(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Pricing(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckSelection handles POST /v1/products/:id/selection. An unpurchasable
// selection is a normal answer (200 with valid=false), not an error.
func (h *CatalogHandler) CheckSelection(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req dto.SelectionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CheckSelection(c.Request.Context(), id, req.VariantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PriceChanges handles GET /v1/products/:id/price-changes?page=&limit=.
func (h *CatalogHandler) PriceChanges(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	resp, err := h.svc.PriceHistory(c.Request.Context(), id, page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}
	_ = c.Error(err)
}
