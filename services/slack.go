package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SlackNotifier posts plain-text messages to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *resty.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

func (s *SlackNotifier) Enabled() bool {
	return s != nil && s.webhookURL != ""
}

func (s *SlackNotifier) Post(ctx context.Context, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(s.webhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("slack: status %d", resp.StatusCode())
	}
	return nil
}
