package sns

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	return &sns.PublishOutput{}, args.Error(0)
}

func TestCodeNotifier_PublishesToPhone(t *testing.T) {
	mp := &mockPublisher{}
	mp.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.PhoneNumber == "+15550100" && *in.Message == "Your verification code: 048213 (valid 10 min)"
	})).Return(nil)

	phone := "+15550100"
	n := NewCodeNotifier(&Sender{client: mp}, 10*time.Minute)
	err := n.Send(context.Background(), &domain.User{UserID: "u1", Phone: &phone}, "048213")

	require.NoError(t, err)
	mp.AssertExpectations(t)
}

func TestCodeNotifier_NoPhone(t *testing.T) {
	mp := &mockPublisher{}
	n := NewCodeNotifier(&Sender{client: mp}, 10*time.Minute)

	err := n.Send(context.Background(), &domain.User{UserID: "u1"}, "048213")
	assert.Error(t, err)
	mp.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
