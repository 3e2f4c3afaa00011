package app

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/pkg/utils"
)

const defaultAdminLimit = 50

func (a *App) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	for _, register := range a.routes {
		register(router)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": a.ServiceNames()})
	})
	if a.cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	admin := router.Group("/admin/:service")
	admin.GET("/outbox/failed", a.listFailedOutbox)
	admin.POST("/outbox/requeue/:event_id", a.requeueOutbox)
	admin.GET("/deadletters", a.listDeadLetters)
	return router
}

func (a *App) serviceFromPath(c *gin.Context) (*Service, bool) {
	svc, err := a.Service(c.Param("service"))
	if err != nil {
		utils.SendNotFound(c, err.Error())
		return nil, false
	}
	return svc, true
}

func limitFromQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAdminLimit)))
	if err != nil || limit <= 0 {
		return defaultAdminLimit
	}
	return limit
}

func (a *App) listFailedOutbox(c *gin.Context) {
	svc, ok := a.serviceFromPath(c)
	if !ok {
		return
	}
	records, err := svc.Outbox.ListFailedOutbox(c.Request.Context(), limitFromQuery(c))
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, records)
}

// requeueOutbox devuelve un registro Failed a Pending y despierta al publisher.
func (a *App) requeueOutbox(c *gin.Context) {
	svc, ok := a.serviceFromPath(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid event id")
		return
	}
	if err := svc.Requeue(c.Request.Context(), id); err != nil {
		utils.SendDomainError(c, err, utils.StatusMap{sharedDomain.ErrOutboxRecordNotFound: http.StatusNotFound})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) listDeadLetters(c *gin.Context) {
	svc, ok := a.serviceFromPath(c)
	if !ok {
		return
	}
	dls, err := svc.DeadLetters.List(c.Request.Context(), limitFromQuery(c))
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, dls)
}
