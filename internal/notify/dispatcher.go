package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/food-diary/internal/metrics"
)

const DefaultSendTimeout = 10 * time.Second

// Dispatcher sends messages in the background. Callers never wait for
// delivery and never see its errors; failures are logged and counted.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{notifier: n, timeout: timeout, metrics: m, logger: logger}
}

// Dispatch queues msg for delivery and returns immediately. The send is
// detached from the request context so it outlives the response.
func (d *Dispatcher) Dispatch(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, msg); err != nil {
			d.metrics.Email(string(msg.Kind), "failed")
			d.logger.Error("failed to send email",
				slog.String("kind", string(msg.Kind)),
				slog.String("to", msg.To),
				slog.String("error", err.Error()),
			)
			return
		}
		d.metrics.Email(string(msg.Kind), "sent")
	}()
}

// Wait blocks until every dispatched message has been handled or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
