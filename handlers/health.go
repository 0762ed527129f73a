package handlers

import (
	"context"
	"time"

	"aidirectory/apperr"
	"aidirectory/logger"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const Version = "1.0.0"

type Pinger interface {
	PingContext(ctx context.Context) error
}

func (a *API) Banner(c *gin.Context) {
	response.OK(c, gin.H{
		"service": logger.ServiceName,
		"version": Version,
		"api":     "/api/v1",
	}, "AI Tool Directory API")
}

// Health reports whether the database answers within two seconds.
func (a *API) Health(c *gin.Context) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			a.logger.Error("health check failed", zap.Error(err))
			response.Error(c, apperr.Unavailable("Database unreachable", err).WithDetails(map[string]any{
				"status":   "degraded",
				"version":  Version,
				"database": "unreachable",
			}))
			return
		}
	}
	response.OK(c, gin.H{
		"status":   "ok",
		"version":  Version,
		"time":     a.now().UTC(),
		"database": "ok",
	}, "")
}

func (a *API) NoRoute(c *gin.Context) {
	response.Error(c, apperr.NotFound(apperr.CodeNotFound, "Resource not found"))
}

func (a *API) NoMethod(c *gin.Context) {
	response.Error(c, apperr.New(apperr.KindMethodNotAllowed, apperr.CodeMethodNotAllowed, "Method not allowed"))
}
