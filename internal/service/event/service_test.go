package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	args := m.Called(ctx, eventType, payload)
	return args.Error(0)
}

func TestService_Emit(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "chat.cleared", "payload").Return(nil)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	NewService(pub, logger.Nop(), m).Emit(context.Background(), "chat.cleared", "payload")

	pub.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("chat.cleared", "ok")))
}

func TestService_EmitSwallowsErrors(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "patient.submitted", mock.Anything).Return(errors.New("redis down"))
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	assert.NotPanics(t, func() {
		NewService(pub, logger.Nop(), m).Emit(context.Background(), "patient.submitted", nil)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("patient.submitted", "error")))
}

func TestService_EmitIgnoresCallerCancellation(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "x", nil).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewService(pub, nil, nil).Emit(ctx, "x", nil)

	pub.AssertExpectations(t)
}

func TestService_EmitBoundsSlowPublisher(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "chat.exchanged", nil).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	start := time.Now()
	NewService(pub, nil, m).Emit(context.Background(), "chat.exchanged", nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("chat.exchanged", "error")))
}
