package handlers

import (
	"errors"
	"strconv"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/models"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultStatsDays  = 30
	maxStatsDays      = 365
	defaultTopTools   = 10
	defaultActivities = 20
)

// boundedQuery reads an integer query parameter in [1, max].
func boundedQuery(c *gin.Context, name string, def, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, apperr.Field(name, "must be between 1 and "+strconv.Itoa(max))
	}
	return n, nil
}

// cached serves key from the cache, falling back to load and storing its
// result. Cache failures only cost a recomputation.
func cached[T any](c *gin.Context, a *API, key string, load func() (*T, error)) (*T, error) {
	ctx := c.Request.Context()
	var v T
	err := cache.GetJSON(ctx, a.cache, key, &v)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		a.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	fresh, err := load()
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, a.cache, key, fresh, a.cacheTTL); err != nil {
		a.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return fresh, nil
}

func (a *API) Dashboard(c *gin.Context) {
	stats, err := cached(c, a, cache.KeyDashboard, func() (*models.DashboardStats, error) {
		return a.store.DashboardStats(c.Request.Context(), a.now())
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats, "")
}

func (a *API) RecentActivity(c *gin.Context) {
	limit, err := boundedQuery(c, "limit", defaultActivities, models.MaxPageLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, err := a.store.ListActivity(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs, "")
}

func (a *API) UserStats(c *gin.Context) {
	days, err := boundedQuery(c, "days", defaultStatsDays, maxStatsDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := a.store.UserStats(c.Request.Context(), a.now(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats, "")
}

func (a *API) ToolStats(c *gin.Context) {
	stats, err := cached(c, a, cache.KeyToolStats, func() (*models.ToolStats, error) {
		return a.store.ToolStats(c.Request.Context(), defaultTopTools)
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats, "")
}

func (a *API) RevenueStats(c *gin.Context) {
	days, err := boundedQuery(c, "days", defaultStatsDays, maxStatsDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := a.store.RevenueStats(c.Request.Context(), a.now(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats, "")
}
