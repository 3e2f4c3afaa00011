package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/hexasync/internal/user/application"
	"github.com/davicafu/hexasync/internal/user/domain"
	"github.com/davicafu/hexasync/pkg/utils"
)

var userErrors = utils.StatusMap{
	domain.ErrUserNotFound:      http.StatusNotFound,
	domain.ErrUserAlreadyExists: http.StatusConflict,
	domain.ErrInvalidUser:       http.StatusBadRequest,
}

// UserHandler encapsula los endpoints HTTP relacionados con User
type UserHandler struct {
	service  *application.UserService
	activity domain.ActivityRepository
}

// NewUserHandler crea un nuevo UserHandler
func NewUserHandler(service *application.UserService, activity domain.ActivityRepository) *UserHandler {
	return &UserHandler{service: service, activity: activity}
}

// ---------------- Handlers ----------------

// RegisterUser endpoint POST /users. 201 significa escritura y evento
// confirmados; los demás servicios lo verán después.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req struct {
		Email  string `json:"email" binding:"required,email"`
		Nombre string `json:"nombre" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), req.Email, req.Nombre)
	if err != nil {
		utils.SendDomainError(c, err, userErrors)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, user)
}

// GetUser endpoint GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err, userErrors)
		return
	}
	utils.SendSuccess(c, http.StatusOK, user)
}

// UpdateUser endpoint PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Email  *string `json:"email,omitempty"`
		Nombre *string `json:"nombre,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), id, req.Email, req.Nombre)
	if err != nil {
		utils.SendDomainError(c, err, userErrors)
		return
	}
	utils.SendSuccess(c, http.StatusOK, user)
}

// ListUsers endpoint GET /users?nombre=&email=&limit=&offset=&sort_field=&sort_desc=
func (h *UserHandler) ListUsers(c *gin.Context) {
	var f domain.UserFilter
	if nombre := c.Query("nombre"); nombre != "" {
		f.Nombre = &nombre
	}
	if email := c.Query("email"); email != "" {
		f.Email = &email
	}
	f.Sort = domain.Sort{Field: c.DefaultQuery("sort_field", "created_at"), Desc: c.Query("sort_desc") == "true"}
	f.Pagination.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Pagination.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.service.ListUsers(c.Request.Context(), f)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, users)
}

// ListActivity endpoint GET /users/:id/activity
func (h *UserHandler) ListActivity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	list, err := h.activity.ListByUser(c.Request.Context(), id, 100)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, list)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}
