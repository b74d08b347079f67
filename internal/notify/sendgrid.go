package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/logging"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// FallbackTo receives the message when the doctor has no e-mail on file.
	FallbackTo string
}

// SendGridNotifier e-mails the doctor about a new booking.
type SendGridNotifier struct {
	client     mailClient
	fromEmail  string
	fromName   string
	fallbackTo string
	logger     *zap.Logger
}

// NewSendGridNotifier returns nil when no API key is configured.
func NewSendGridNotifier(cfg SendGridConfig, logger *zap.Logger) *SendGridNotifier {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridNotifier(client mailClient, cfg SendGridConfig, logger *zap.Logger) *SendGridNotifier {
	if cfg.FromName == "" {
		cfg.FromName = "Clinic Booking"
	}
	return &SendGridNotifier{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		fallbackTo: cfg.FallbackTo,
		logger:     logging.OrNop(logger),
	}
}

var errNoRecipient = errors.New("notify: no recipient for appointment e-mail")

func (s *SendGridNotifier) Notify(ctx context.Context, n Notification) error {
	to := n.DoctorEmail
	if to == "" {
		to = s.fallbackTo
	}
	if to == "" {
		return errNoRecipient
	}

	message := buildMail(s.fromName, s.fromEmail, to, n)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Debug("appointment e-mail sent",
		zap.String("to", to),
		zap.String("appointment_id", n.AppointmentID.String()),
		zap.Int("status", response.StatusCode),
	)
	return nil
}

func buildMail(fromName, fromEmail, to string, n Notification) *mail.SGMailV3 {
	subject := fmt.Sprintf("New appointment on %s at %s", n.Date, n.Time)
	body := Message(n)
	return mail.NewSingleEmail(
		mail.NewEmail(fromName, fromEmail),
		subject,
		mail.NewEmail(n.DoctorName, to),
		body,
		"<p>"+html.EscapeString(body)+"</p>",
	)
}
