package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/hexasync/internal/product/application"
	"github.com/davicafu/hexasync/internal/product/domain"
	"github.com/davicafu/hexasync/pkg/utils"
)

var productErrors = utils.StatusMap{
	domain.ErrProductNotFound: http.StatusNotFound,
	domain.ErrInvalidProduct:  http.StatusBadRequest,
}

type ProductHandler struct {
	service *application.ProductService
}

func NewProductHandler(service *application.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// CreateProduct endpoint POST /products. El precio viaja como string decimal.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req struct {
		Name  string          `json:"name" binding:"required"`
		Price decimal.Decimal `json:"price"`
		Stock int             `json:"stock" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	p, err := h.service.CreateProduct(c.Request.Context(), req.Name, req.Price, req.Stock)
	if err != nil {
		utils.SendDomainError(c, err, productErrors)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, p)
}

// GetProduct endpoint GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid product id")
		return
	}

	p, err := h.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err, productErrors)
		return
	}
	utils.SendSuccess(c, http.StatusOK, p)
}

// ListProducts endpoint GET /products?limit=&offset=
func (h *ProductHandler) ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.service.ListProducts(c.Request.Context(), limit, offset)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, list)
}
