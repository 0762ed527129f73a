package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aidirectory/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const senderName = "AI Tool Directory"

type Message struct {
	Subject string
	Text    string
}

// Mailer sends transactional mail through SendGrid.
type Mailer struct {
	apiKey string
	from   string
}

func NewMailer(apiKey, from string) *Mailer {
	return &Mailer{apiKey: apiKey, from: from}
}

// Enabled reports whether both the API key and sender are configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.apiKey != "" && m.from != ""
}

func (m *Mailer) Send(ctx context.Context, u *models.User, msg Message) error {
	from := mail.NewEmail(senderName, m.from)
	to := mail.NewEmail(displayName(u), u.Email)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, strings.ReplaceAll(msg.Text, "\n", "<br>"))

	resp, err := sendgrid.NewSendClient(m.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

func displayName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func WelcomeMessage(u *models.User) Message {
	return Message{
		Subject: "Welcome to the AI Tool Directory",
		Text: fmt.Sprintf(`Hi %s,

Your account is ready. You are on the %s plan.

Browse the directory, save tools you like and upgrade any time to unlock
premium and business-only tools.`, displayName(u), u.SubscriptionTier),
	}
}

func ReceiptMessage(u *models.User, p Plan, sub *models.Subscription, txn *models.PaymentTransaction) Message {
	return Message{
		Subject: fmt.Sprintf("Your %s subscription receipt", p.Name),
		Text: fmt.Sprintf(`Hi %s,

Thanks for subscribing to %s.

RECEIPT:
Amount: %.2f %s
Payment method: %s
Transaction: #%d
Date: %s

Your plan renews on %s.`,
			displayName(u), p.Name,
			txn.Amount, txn.Currency,
			txn.PaymentMethod,
			txn.ID,
			txn.TransactionDate.Format(time.RFC1123),
			sub.CurrentPeriodEnd.Format("January 2, 2006")),
	}
}

func CancellationMessage(u *models.User, sub *models.Subscription, immediate bool) Message {
	when := "immediately. You are now on the Free plan."
	if !immediate {
		when = fmt.Sprintf("at the end of the current period on %s.", sub.CurrentPeriodEnd.Format("January 2, 2006"))
	}
	return Message{
		Subject: "Your subscription was canceled",
		Text: fmt.Sprintf(`Hi %s,

Your %s subscription ends %s`, displayName(u), sub.PlanID, when),
	}
}
