package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/food-diary/internal/metrics"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	deadline time.Time
	err      error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	f.deadline, _ = ctx.Deadline()
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestRabbitNotifier_Send(t *testing.T) {
	ch := &fakeChannel{}
	n := &RabbitNotifier{ch: ch, exchange: "food-diary", now: time.Now}

	msg := Message{Kind: KindPasswordReset, To: "ann@example.com", Subject: "Reset", Link: "http://x/reset"}
	require.NoError(t, n.Send(context.Background(), msg))

	assert.Equal(t, "food-diary", ch.exchange)
	assert.Equal(t, "email.password_reset", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.NotEmpty(t, ch.msg.MessageId)
	assert.False(t, ch.deadline.IsZero(), "publish must be time-bounded")

	var got Message
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, msg, got)
}

func TestRabbitNotifier_SendError(t *testing.T) {
	n := &RabbitNotifier{ch: &fakeChannel{err: amqp.ErrClosed}, exchange: "x", now: time.Now}

	err := n.Send(context.Background(), Message{Kind: KindVerification})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Send(context.Background(), Message{Kind: KindVerification, To: "bob@example.com", Link: "http://x/verify/abc"}))
	assert.Contains(t, buf.String(), "to=bob@example.com")
	assert.Contains(t, buf.String(), "http://x/verify/abc")
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func TestDispatcher_DeliversAndCounts(t *testing.T) {
	rec := &recordingNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(rec, time.Second, m, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	d.Dispatch(Message{Kind: KindVerification, To: "a@example.com"})
	d.Dispatch(Message{Kind: KindVerification, To: "b@example.com"})
	require.NoError(t, d.Wait(context.Background()))

	assert.Len(t, rec.sent, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Emails.WithLabelValues("verification", "sent")))
}

func TestDispatcher_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingNotifier{err: errors.New("smtp down")}
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(rec, time.Second, m, slog.New(slog.NewTextHandler(&buf, nil)))

	d.Dispatch(Message{Kind: KindPasswordReset, To: "a@example.com"})
	require.NoError(t, d.Wait(context.Background()))

	assert.Contains(t, buf.String(), "smtp down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues("password_reset", "failed")))
}

type blockingNotifier struct{ release chan struct{} }

func (b blockingNotifier) Send(ctx context.Context, msg Message) error {
	<-b.release
	return nil
}

func TestDispatcher_WaitHonoursContext(t *testing.T) {
	b := blockingNotifier{release: make(chan struct{})}
	d := NewDispatcher(b, time.Minute, nil, slog.Default())
	d.Dispatch(Message{Kind: KindVerification})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(b.release)
	require.NoError(t, d.Wait(context.Background()))
}
