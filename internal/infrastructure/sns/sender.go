package sns

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/husnainisworking/personal-blog/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender sends SMS messages via AWS SNS.
type Sender struct {
	client publisher
}

func NewSender(awsCfg aws.Config) *Sender {
	return &Sender{client: sns.NewFromConfig(awsCfg)}
}

func (s *Sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// CodeNotifier texts two-factor codes to the user's phone.
type CodeNotifier struct {
	sender   *Sender
	lifetime time.Duration
}

func NewCodeNotifier(s *Sender, lifetime time.Duration) *CodeNotifier {
	return &CodeNotifier{sender: s, lifetime: lifetime}
}

func (n *CodeNotifier) Send(ctx context.Context, u *domain.User, code string) error {
	if u.Phone == nil || *u.Phone == "" {
		return fmt.Errorf("user %s has no phone number", u.UserID)
	}
	msg := fmt.Sprintf("Your verification code: %s (valid %d min)", code, int(n.lifetime.Minutes()))
	return n.sender.SendSMS(ctx, *u.Phone, msg)
}
