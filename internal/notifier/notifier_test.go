package notifier

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, textBody string) error {
	args := m.Called(to, subject, textBody)
	return args.Error(0)
}

func confirmationJob(t *testing.T, c model.PurchaseConfirmation) *queue.Job {
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return &queue.Job{ID: "1-0", Data: data}
}

func TestService_Deliver(t *testing.T) {
	t.Run("sends the rendered confirmation", func(t *testing.T) {
		mailer := new(MockMailer)
		svc := &Service{mailer: mailer, config: ServiceConfig{RaffleName: "Rifa Digital"}}

		mailer.On("Send", "ana@example.com", "Rifa Digital: compra confirmada",
			mock.MatchedBy(func(body string) bool {
				return len(body) > 0
			})).Return(nil)

		err := svc.deliver(confirmationJob(t, model.PurchaseConfirmation{
			Email:       "ana@example.com",
			Name:        "Ana",
			Numbers:     []int64{7},
			Amount:      1000,
			PaymentID:   "pay-1",
			PurchasedAt: time.Now(),
		}))
		require.NoError(t, err)
		mailer.AssertExpectations(t)
	})

	t.Run("mailer failure is surfaced for retry", func(t *testing.T) {
		mailer := new(MockMailer)
		svc := &Service{mailer: mailer, config: ServiceConfig{RaffleName: "Rifa Digital"}}

		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

		err := svc.deliver(confirmationJob(t, model.PurchaseConfirmation{
			Email:   "ana@example.com",
			Numbers: []int64{7},
		}))
		assert.Error(t, err)
	})

	t.Run("undecodable payload is dropped, not retried", func(t *testing.T) {
		mailer := new(MockMailer)
		svc := &Service{mailer: mailer, config: ServiceConfig{RaffleName: "Rifa Digital"}}

		err := svc.deliver(&queue.Job{ID: "1-1", Data: []byte("not json")})
		assert.NoError(t, err)
		mailer.AssertNotCalled(t, "Send")
	})

	t.Run("missing recipient is dropped, not retried", func(t *testing.T) {
		mailer := new(MockMailer)
		svc := &Service{mailer: mailer, config: ServiceConfig{RaffleName: "Rifa Digital"}}

		err := svc.deliver(confirmationJob(t, model.PurchaseConfirmation{
			Numbers: []int64{7},
		}))
		assert.NoError(t, err)
		mailer.AssertNotCalled(t, "Send")
	})
}
