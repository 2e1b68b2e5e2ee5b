package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luminapay-payment-monitor/internal/config"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
)

// MockPaymentRepository for testing
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.PendingPayment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PendingPayment), args.Error(1)
}

func (m *MockPaymentRepository) FindEligible(ctx context.Context, limit int) ([]*payment.PendingPayment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.PendingPayment), args.Error(1)
}

func (m *MockPaymentRepository) Settle(ctx context.Context, id uuid.UUID, pagingToken string) error {
	args := m.Called(ctx, id, pagingToken)
	return args.Error(0)
}

func (m *MockPaymentRepository) AdvanceCursor(ctx context.Context, id uuid.UUID, pagingToken string) error {
	args := m.Called(ctx, id, pagingToken)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payment.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockReconciler for testing
type MockReconciler struct {
	mock.Mock
	wg *sync.WaitGroup
}

func (m *MockReconciler) Reconcile(ctx context.Context, p *payment.PendingPayment) error {
	args := m.Called(ctx, p)
	if m.wg != nil {
		m.wg.Done()
	}
	return args.Error(0)
}

func testConfig() (*config.MonitorConfig, *config.WorkerPoolConfig) {
	return &config.MonitorConfig{
			PollingInterval:  50 * time.Millisecond,
			BatchSize:        10,
			ReconcileTimeout: time.Second,
		}, &config.WorkerPoolConfig{
			Size: 4,
		}
}

func testPayment() *payment.PendingPayment {
	return &payment.PendingPayment{
		ID:             uuid.New(),
		DepositAddress: "GDEPOSIT123",
		ExpectedAmount: decimal.RequireFromString("100"),
		AssetCode:      "USDC",
		Status:         payment.StatusPending,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
}

func TestNewScheduler(t *testing.T) {
	monitorCfg, poolCfg := testConfig()
	s, err := NewScheduler(monitorCfg, poolCfg, &MockPaymentRepository{}, &MockReconciler{}, slog.Default())

	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Shutdown()

	assert.Equal(t, 0, s.Running())
}

func TestScheduler_ProcessEligiblePayments(t *testing.T) {
	t.Run("DispatchesEachEligiblePayment", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		var wg sync.WaitGroup
		mockReconciler := &MockReconciler{wg: &wg}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		p1 := testPayment()
		p2 := testPayment()

		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
		mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{p1, p2}, nil)
		mockReconciler.On("Reconcile", mock.Anything, p1).Return(nil)
		mockReconciler.On("Reconcile", mock.Anything, p2).Return(nil)

		wg.Add(2)
		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)
		wg.Wait()

		mockRepo.AssertExpectations(t)
		mockReconciler.AssertExpectations(t)
	})

	t.Run("OnePaymentFailingDoesNotAbortTheTick", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		var wg sync.WaitGroup
		mockReconciler := &MockReconciler{wg: &wg}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		failing := testPayment()
		healthy := testPayment()

		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
		mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{failing, healthy}, nil)
		mockReconciler.On("Reconcile", mock.Anything, failing).Return(errors.New("horizon timeout"))
		mockReconciler.On("Reconcile", mock.Anything, healthy).Return(nil)

		wg.Add(2)
		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)
		wg.Wait()

		mockReconciler.AssertExpectations(t)
	})

	t.Run("EmptyBatchIsANoOp", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		mockReconciler := &MockReconciler{}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
		mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{}, nil)

		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)

		mockReconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})

	t.Run("FindEligibleFailureIsReturned", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		mockReconciler := &MockReconciler{}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		dbErr := errors.New("connection refused")
		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
		mockRepo.On("FindEligible", mock.Anything, 10).Return(nil, dbErr)

		err = s.processEligiblePayments(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("ExpirySweepFailureDoesNotBlockScanning", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		var wg sync.WaitGroup
		mockReconciler := &MockReconciler{wg: &wg}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		p := testPayment()

		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("lock timeout"))
		mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{p}, nil)
		mockReconciler.On("Reconcile", mock.Anything, p).Return(nil)

		wg.Add(1)
		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)
		wg.Wait()

		mockReconciler.AssertExpectations(t)
	})

	t.Run("InFlightPaymentIsNotDispatchedTwice", func(t *testing.T) {
		mockRepo := &MockPaymentRepository{}
		var wg sync.WaitGroup
		mockReconciler := &MockReconciler{wg: &wg}

		monitorCfg, poolCfg := testConfig()
		s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
		require.NoError(t, err)
		defer s.Shutdown()

		p := testPayment()

		// Claimed by a previous, still-running tick
		require.True(t, s.claim(p.ID))

		mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
		mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{p}, nil)

		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)

		mockReconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)

		// Once released the payment is dispatched again
		s.release(p.ID)
		mockReconciler.On("Reconcile", mock.Anything, p).Return(nil)

		wg.Add(1)
		err = s.processEligiblePayments(context.Background())
		require.NoError(t, err)
		wg.Wait()

		mockReconciler.AssertExpectations(t)
	})
}

func TestScheduler_StartStopsOnContextCancellation(t *testing.T) {
	mockRepo := &MockPaymentRepository{}
	mockReconciler := &MockReconciler{}

	monitorCfg, poolCfg := testConfig()
	s, err := NewScheduler(monitorCfg, poolCfg, mockRepo, mockReconciler, slog.Default())
	require.NoError(t, err)
	defer s.Shutdown()

	mockRepo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	mockRepo.On("FindEligible", mock.Anything, 10).Return([]*payment.PendingPayment{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// Let at least one tick fire before stopping
	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestScheduler_ClaimRelease(t *testing.T) {
	monitorCfg, poolCfg := testConfig()
	s, err := NewScheduler(monitorCfg, poolCfg, &MockPaymentRepository{}, &MockReconciler{}, slog.Default())
	require.NoError(t, err)
	defer s.Shutdown()

	id := uuid.New()

	assert.True(t, s.claim(id))
	assert.False(t, s.claim(id), "A claimed payment cannot be claimed again")

	s.release(id)
	assert.True(t, s.claim(id), "A released payment can be claimed anew")
}
