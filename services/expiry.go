package services

import (
	"context"
	"time"

	"aidirectory/cache"
	"aidirectory/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error)
}

type LapseRecorder interface {
	SubscriptionsLapsed(count int)
}

type CacheEvicter interface {
	Delete(ctx context.Context, keys ...string) error
}

// ExpirySweeper closes subscriptions whose paid period has ended.
type ExpirySweeper struct {
	store    SubscriptionExpirer
	notify   LapseRecorder
	cache    CacheEvicter
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// NewExpirySweeper builds a sweeper. notify and evict may be nil.
func NewExpirySweeper(store SubscriptionExpirer, notify LapseRecorder, evict CacheEvicter, logger *zap.Logger, schedule string) *ExpirySweeper {
	return &ExpirySweeper{
		store:    store,
		notify:   notify,
		cache:    evict,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

func (s *ExpirySweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("subscription expiry sweep scheduled", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass and returns the number of subscriptions closed.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("expiry sweep panic recovered", zap.Any("panic", r))
		}
	}()

	lapsed, err := s.store.ExpireSubscriptions(ctx, s.now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	for _, sub := range lapsed {
		s.logger.Info("subscription lapsed",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("user_id", sub.UserID),
			zap.String("status", sub.Status))
	}
	if len(lapsed) > 0 && s.cache != nil {
		// Downgraded users change the dashboard tier counts.
		if err := s.cache.Delete(ctx, cache.KeyDashboard); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", cache.KeyDashboard), zap.Error(err))
		}
	}
	if s.notify != nil {
		s.notify.SubscriptionsLapsed(len(lapsed))
	}
	return len(lapsed)
}
