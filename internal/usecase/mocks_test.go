package usecase_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/dj-funnel/internal/entity"
	"github.com/xavierca1/dj-funnel/internal/infra/integration/payments"
)

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Insert(ctx context.Context, lead *entity.Lead, includeConsent bool) error {
	args := m.Called(ctx, lead, includeConsent)
	return args.Error(0)
}

func (m *MockLeadRepository) FindAbandonedCartCandidates(ctx context.Context, filter entity.AbandonedCartFilter) ([]*entity.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) AppendTag(ctx context.Context, leadID, tag string) error {
	args := m.Called(ctx, leadID, tag)
	return args.Error(0)
}

// MockEmailQueue
type MockEmailQueue struct {
	mock.Mock
}

func (m *MockEmailQueue) Enqueue(ctx context.Context, email *entity.QueuedEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockEmailQueue) FetchPending(ctx context.Context, limit int) ([]*entity.QueuedEmail, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.QueuedEmail), args.Error(1)
}

func (m *MockEmailQueue) MarkSent(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEmailQueue) MarkFailed(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockEmailQueue) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

// MockLeadSyncer signals every call on Calls so async syncs can be awaited.
type MockLeadSyncer struct {
	mock.Mock
	Calls chan string
}

func NewMockLeadSyncer() *MockLeadSyncer {
	return &MockLeadSyncer{Calls: make(chan string, 16)}
}

func (m *MockLeadSyncer) SyncLead(ctx context.Context, leadID string) error {
	args := m.Called(ctx, leadID)
	m.Calls <- leadID
	return args.Error(0)
}

// MockPaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) VerifyStripe(ctx context.Context, input payments.VerifyStripeInput) (*payments.VerifyStripeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.VerifyStripeOutput), args.Error(1)
}

func (m *MockPaymentGateway) CapturePayPal(ctx context.Context, input payments.CapturePayPalInput) (*payments.CapturePayPalOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.CapturePayPalOutput), args.Error(1)
}
