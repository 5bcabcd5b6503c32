package smtp

import (
	"context"
	"fmt"
	"math"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/domain"
)

// dialer is satisfied by *gomail.Dialer.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers verification codes over SMTP.
type Mailer struct {
	dialer  dialer
	from    string
	codeTTL time.Duration
}

func NewMailer(cfg *config.Config) *Mailer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &Mailer{dialer: d, from: cfg.SMTPFrom, codeTTL: cfg.VerificationCodeTTL}
}

// SendCode emails code to address with wording that matches purpose.
func (m *Mailer) SendCode(ctx context.Context, address, code string, purpose domain.Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, intro := copyFor(purpose)
	minutes := int(math.Ceil(m.codeTTL.Minutes()))

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", fmt.Sprintf("%s\n\nYour code is %s. It expires in %d minutes.\n\nIf you did not request this, you can ignore this email.\n", intro, code, minutes))
	msg.AddAlternative("text/html", fmt.Sprintf(htmlTemplate, subject, intro, code, minutes))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s code: %w", purpose, err)
	}
	return nil
}

func copyFor(purpose domain.Purpose) (subject, intro string) {
	if purpose == domain.PurposeRegistration {
		return "Verify your email for the alumni directory", "Use this code to finish creating your alumni directory account."
	}
	return "Your alumni directory login code", "Use this code to sign in to the alumni directory."
}

const htmlTemplate = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px">
<h2>%s</h2>
<p>%s</p>
<div style="background:#f4f4f4;padding:20px;text-align:center;font-size:32px;font-weight:bold;letter-spacing:5px;margin:20px 0">%s</div>
<p>This code expires in %d minutes.</p>
<p style="color:#666;font-size:12px">If you did not request this, you can ignore this email.</p>
</body></html>`
