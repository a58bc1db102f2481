package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

// SendGridNotifier emails order confirmations through the SendGrid v3 API.
type SendGridNotifier struct {
	apiKey string
	host   string // empty = api.sendgrid.com
	from   *mail.Email
	log    *slog.Logger
}

type Option func(*SendGridNotifier)

// WithHost points the notifier at another API host (tests, EU region).
func WithHost(host string) Option { return func(n *SendGridNotifier) { n.host = host } }

func NewSendGridNotifier(apiKey, fromEmail, fromName string, opts ...Option) *SendGridNotifier {
	n := &SendGridNotifier{
		apiKey: apiKey,
		from:   mail.NewEmail(fromName, fromEmail),
		log:    logging.New("notify"),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *SendGridNotifier) OrderConfirmation(ctx context.Context, msg usecase.OrderCreatedMsg) error {
	subject := fmt.Sprintf("Order %s confirmed", msg.OrderNumber)
	text := fmt.Sprintf(
		"Thank you for your purchase!\n\nOrder: %s\nItems: %d\nTotal: %s %s\n",
		msg.OrderNumber, msg.ItemCount, msg.Total, msg.Currency,
	)
	html := fmt.Sprintf(
		"<strong>Thank you for your purchase!</strong><br><br>Order: <strong>%s</strong><br>Items: %d<br>Total: <strong>%s %s</strong>",
		msg.OrderNumber, msg.ItemCount, msg.Total, msg.Currency,
	)
	m := mail.NewSingleEmail(n.from, subject, mail.NewEmail("", msg.Email), text, html)

	req := sendgrid.GetRequest(n.apiKey, sendEndpoint, n.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	n.log.Info("order confirmation sent", "order_id", msg.OrderID, "order_number", msg.OrderNumber)
	return nil
}

// LogNotifier only logs; used when email delivery is disabled.
type LogNotifier struct{ log *slog.Logger }

func NewLogNotifier() *LogNotifier { return &LogNotifier{log: logging.New("notify")} }

func (n *LogNotifier) OrderConfirmation(_ context.Context, msg usecase.OrderCreatedMsg) error {
	n.log.Info("order confirmation (email disabled)",
		"order_id", msg.OrderID, "order_number", msg.OrderNumber, "email", msg.Email)
	return nil
}
