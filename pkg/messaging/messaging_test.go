package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]interface{}
	ch        chan []byte
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]interface{}{}, ch: make(chan []byte, 10)}
}

func (f *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], message)
	return nil
}

func (f *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return f.ch, f.err
}

func (f *fakeBroker) Close() error { return nil }

func TestEventPublisher_WrapsPayload(t *testing.T) {
	b := newFakeBroker()
	p := NewEventPublisher(b, "")

	require.NoError(t, p.Publish(context.Background(), "patient.submitted", map[string]string{"patientId": "p1"}))

	msgs := b.published[DefaultChannel]
	require.Len(t, msgs, 1)
	msg := msgs[0].(*Message)
	assert.Equal(t, "patient.submitted", msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.JSONEq(t, `{"patientId":"p1"}`, string(msg.Payload))
}

func TestEventPublisher_BrokerError(t *testing.T) {
	b := newFakeBroker()
	b.err = errors.New("down")
	assert.EqualError(t, NewEventPublisher(b, "c").Publish(context.Background(), "x", nil), "down")
}

func TestDecodeMessage(t *testing.T) {
	msg, err := NewMessage("chat.cleared", struct{}{})
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	got, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "chat.cleared", got.Type)

	_, err = DecodeMessage([]byte(`{"id":"1"}`))
	assert.Error(t, err)
	_, err = DecodeMessage([]byte(`nope`))
	assert.Error(t, err)
}

func TestConsume_SkipsMalformedAndStopsOnClose(t *testing.T) {
	b := newFakeBroker()
	good, _ := NewMessage("chat.exchanged", map[string]string{"userMessageId": "u"})
	raw, _ := json.Marshal(good)
	b.ch <- []byte("garbage")
	b.ch <- raw
	close(b.ch)

	var seen []string
	logger := zerolog.Nop()
	err := Consume(context.Background(), b, "c", func(_ context.Context, m *Message) error {
		seen = append(seen, m.Type)
		return nil
	}, &logger)

	assert.NoError(t, err)
	assert.Equal(t, []string{"chat.exchanged"}, seen)
}

func TestConsume_StopsOnContext(t *testing.T) {
	b := newFakeBroker()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	logger := zerolog.Nop()
	err := Consume(ctx, b, "c", func(context.Context, *Message) error { return nil }, &logger)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "x", 1))
}
