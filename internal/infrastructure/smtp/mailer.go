package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/husnainisworking/personal-blog/internal/config"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"gopkg.in/gomail.v2"
)

// Email is a plain-text message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends email through an SMTP relay.
type Mailer struct {
	from   string
	dialer sender
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		from:   cfg.SMTPFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (m *Mailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)
	return m.dialer.DialAndSend(msg)
}

// CodeNotifier emails two-factor codes.
type CodeNotifier struct {
	mailer   *Mailer
	lifetime time.Duration
}

func NewCodeNotifier(m *Mailer, lifetime time.Duration) *CodeNotifier {
	return &CodeNotifier{mailer: m, lifetime: lifetime}
}

func (n *CodeNotifier) Send(ctx context.Context, u *domain.User, code string) error {
	if u.Email == "" {
		return fmt.Errorf("user %s has no email address", u.UserID)
	}
	return n.mailer.Send(ctx, Email{
		To:      []string{u.Email},
		Subject: "Your verification code",
		Body:    codeBody(code, n.lifetime),
	})
}

func codeBody(code string, lifetime time.Duration) string {
	return fmt.Sprintf("Your verification code is %s.\nIt expires in %d minutes. If you did not try to sign in, change your password.",
		code, int(lifetime.Minutes()))
}
