package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}

// StatusMap asocia errores de dominio a códigos HTTP.
type StatusMap map[error]int

// SendDomainError traduce err con statuses; lo no mapeado es 500. Un fallo
// de atomicidad del outbox se informa como 503: la escritura no ocurrió.
func SendDomainError(c *gin.Context, err error, statuses StatusMap) {
	for target, status := range statuses {
		if errors.Is(err, target) {
			SendError(c, status, err.Error())
			return
		}
	}
	var txErr *sharedDomain.TransactionError
	if errors.As(err, &txErr) {
		SendError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	SendInternalServerError(c, err.Error())
}
