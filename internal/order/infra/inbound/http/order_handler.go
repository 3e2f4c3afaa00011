package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/hexasync/internal/order/application"
	"github.com/davicafu/hexasync/internal/order/domain"
	"github.com/davicafu/hexasync/pkg/utils"
)

// Usuario o producto desconocido es 422: puede que la réplica aún no lo haya recibido.
var orderErrors = utils.StatusMap{
	domain.ErrOrderNotFound:         http.StatusNotFound,
	domain.ErrInvalidOrder:          http.StatusBadRequest,
	domain.ErrUnknownUser:           http.StatusUnprocessableEntity,
	domain.ErrUnknownProduct:        http.StatusUnprocessableEntity,
	domain.ErrOrderAlreadyCancelled: http.StatusConflict,
}

type OrderHandler struct {
	service *application.OrderService
}

func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// CreateOrder endpoint POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req struct {
		UserID uuid.UUID                 `json:"user_id" binding:"required"`
		Items  []application.LineRequest `json:"items" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.UserID, req.Items)
	if err != nil {
		utils.SendDomainError(c, err, orderErrors)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, order)
}

// GetOrder endpoint GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err, orderErrors)
		return
	}
	utils.SendSuccess(c, http.StatusOK, order)
}

// CancelOrder endpoint POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendBadRequest(c, err.Error())
			return
		}
	}

	order, err := h.service.CancelOrder(c.Request.Context(), id, req.Reason)
	if err != nil {
		utils.SendDomainError(c, err, orderErrors)
		return
	}
	utils.SendSuccess(c, http.StatusOK, order)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}
