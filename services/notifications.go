package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aidirectory/models"

	"go.uber.org/zap"
)

const notifyTimeout = 15 * time.Second

// Notifications fans events out to email and Slack in the background.
// Failures are logged and never reach the caller.
type Notifications struct {
	mailer *Mailer
	slack  *SlackNotifier
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewNotifications(mailer *Mailer, slack *SlackNotifier, logger *zap.Logger) *Notifications {
	return &Notifications{mailer: mailer, slack: slack, logger: logger}
}

func (n *Notifications) UserRegistered(u *models.User) {
	n.mail(u, WelcomeMessage(u))
}

func (n *Notifications) Subscribed(u *models.User, p Plan, sub *models.Subscription, txn *models.PaymentTransaction) {
	if sub != nil && txn != nil {
		n.mail(u, ReceiptMessage(u, p, sub, txn))
	}
	if p.Paid() {
		n.post(fmt.Sprintf(":tada: New %s subscription\nUser: %s (#%d)\nAmount: %.2f %s",
			p.Name, u.Email, u.ID, p.Price, p.Currency))
	}
}

func (n *Notifications) Canceled(u *models.User, sub *models.Subscription, immediate bool) {
	n.mail(u, CancellationMessage(u, sub, immediate))
	n.post(fmt.Sprintf("Subscription canceled\nUser: %s (#%d)\nPlan: %s\nImmediate: %t",
		u.Email, u.ID, sub.PlanID, immediate))
}

func (n *Notifications) SubscriptionsLapsed(count int) {
	if count > 0 {
		n.post(fmt.Sprintf("Expiry sweep closed %d subscription(s)", count))
	}
}

// Wait blocks until every queued notification has finished.
func (n *Notifications) Wait() {
	n.wg.Wait()
}

func (n *Notifications) mail(u *models.User, msg Message) {
	if !n.mailer.Enabled() {
		return
	}
	n.async("email", func(ctx context.Context) error {
		return n.mailer.Send(ctx, u, msg)
	})
}

func (n *Notifications) post(text string) {
	if !n.slack.Enabled() {
		return
	}
	n.async("slack", func(ctx context.Context) error {
		return n.slack.Post(ctx, text)
	})
}

func (n *Notifications) async(channel string, fn func(ctx context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("notification panic recovered", zap.String("channel", channel), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			n.logger.Warn("notification failed", zap.String("channel", channel), zap.Error(err))
			return
		}
		n.logger.Debug("notification sent", zap.String("channel", channel))
	}()
}
