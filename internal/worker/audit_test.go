package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type chanBroker struct {
	ch chan []byte
}

func (b *chanBroker) Publish(context.Context, string, interface{}) error { return nil }

func (b *chanBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *chanBroker) Close() error { return nil }

func newTestWorker(t *testing.T) (*AuditWorker, *bytes.Buffer, *metrics.Metrics, *chanBroker) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: &buf})
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	b := &chanBroker{ch: make(chan []byte, 8)}
	return NewAuditWorker(b, "", log, m), &buf, m, b
}

func mustMessage(t *testing.T, eventType string, payload interface{}) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage(eventType, payload)
	require.NoError(t, err)
	return msg
}

func TestAuditWorker_HandleSubmitted(t *testing.T) {
	w, buf, m, _ := newTestWorker(t)

	msg := mustMessage(t, model.EventPatientSubmitted, model.PatientSubmittedEvent{
		PatientID: "p1",
		BlobURL:   "memory://patient-data/patient-p1.json",
	})
	require.NoError(t, w.Handle(context.Background(), msg))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Patient record submitted", line["message"])
	assert.Equal(t, "p1", line["patient_id"])
	assert.Equal(t, model.EventPatientSubmitted, line["event_type"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsReceived.WithLabelValues(model.EventPatientSubmitted)))
}

func TestAuditWorker_HandleFailed(t *testing.T) {
	w, buf, _, _ := newTestWorker(t)

	msg := mustMessage(t, model.EventPatientSubmissionFailed, model.PatientSubmissionFailedEvent{
		Stage:    "generation",
		Message:  "Failed to generate patient data",
		TimedOut: true,
	})
	require.NoError(t, w.Handle(context.Background(), msg))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "generation", line["stage"])
	assert.Equal(t, true, line["timed_out"])
}

func TestAuditWorker_BadPayload(t *testing.T) {
	w, _, _, _ := newTestWorker(t)

	msg := &messaging.Message{ID: "1", Type: model.EventChatExchanged, OccurredAt: time.Now(), Payload: json.RawMessage(`"nope"`)}
	assert.Error(t, w.Handle(context.Background(), msg))
}

func TestAuditWorker_StartConsumesUntilClosed(t *testing.T) {
	w, buf, m, b := newTestWorker(t)

	raw, err := json.Marshal(mustMessage(t, model.EventChatCleared, struct{}{}))
	require.NoError(t, err)
	b.ch <- raw
	b.ch <- []byte(`not json`)
	close(b.ch)

	require.NoError(t, w.Start(context.Background()))
	assert.Contains(t, buf.String(), "Chat history cleared")
	assert.Contains(t, buf.String(), "Dropping malformed message")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsReceived.WithLabelValues(model.EventChatCleared)))
}
