package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	done     chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ []byte) error {
	p.mu.Lock()
	p.channels = append(p.channels, channel)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func TestInvokeRunsHandlerAfterCallerCancels(t *testing.T) {
	pub := &recordingPublisher{done: make(chan struct{}, 1)}
	invoker, err := NewPoolInvoker(2, zap.NewNop(), nil, DefaultHandlers(pub))
	require.NoError(t, err)
	t.Cleanup(func() { _ = invoker.Close(time.Second) })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, invoker.Invoke(ctx, JobNotificationSend, Event{Entity: "delivery", EntityID: 5, ToStatus: "submitted"}))
	cancel()

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Equal(t, []string{ChannelNotifications}, pub.channels)
}

func TestInvokeUnknownJob(t *testing.T) {
	invoker, err := NewPoolInvoker(1, zap.NewNop(), nil, map[string]Handler{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = invoker.Close(time.Second) })

	err = invoker.Invoke(context.Background(), "payout.send", Event{})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestInvokeHandlerErrorIsSwallowed(t *testing.T) {
	ran := make(chan struct{})
	invoker, err := NewPoolInvoker(1, zap.NewNop(), nil, map[string]Handler{
		JobAnalyticsCompute: func(context.Context, json.RawMessage) error {
			defer close(ran)
			return errors.New("downstream unavailable")
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = invoker.Close(time.Second) })

	require.NoError(t, invoker.Invoke(context.Background(), JobAnalyticsCompute, Event{Entity: "campaign", EntityID: 1}))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestPublishToRejectsEmptyEvent(t *testing.T) {
	handler := publishTo(NewLogPublisher(zap.NewNop()), ChannelAnalytics)
	assert.Error(t, handler(context.Background(), json.RawMessage(`{}`)))
	assert.Error(t, handler(context.Background(), json.RawMessage(`not json`)))
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), ChannelNotifications)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	payload := []byte(`{"entity":"dispute","entity_id":9,"to_status":"open"}`)
	require.NoError(t, NewRedisPublisher(client).Publish(context.Background(), ChannelNotifications, payload))

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), msg.Payload)
}
