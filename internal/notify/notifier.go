package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// ErrAllTransportsFailed is returned when no transport in the chain could
// deliver or persist the report.
var ErrAllTransportsFailed = errors.New("all notification transports failed")

// Notifier renders a run report and dispatches it through an ordered chain
// of transports. Delivery is best-effort: the caller logs failures but a
// lost notification never changes the run's verdict.
type Notifier struct {
	transports    []Transport
	timeout       time.Duration
	subjectPrefix string
	log           logger.Logger
}

func NewNotifier(transports []Transport, timeout time.Duration, subjectPrefix string, log logger.Logger) *Notifier {
	return &Notifier{
		transports:    transports,
		timeout:       timeout,
		subjectPrefix: subjectPrefix,
		log:           log,
	}
}

// Notify sends the report to the run's recipients, trying each transport in
// order until one succeeds. The whole attempt is bounded by the configured
// timeout so notification can never stall the pipeline.
func (n *Notifier) Notify(ctx context.Context, report *run.Report, rc run.Context) error {
	if len(n.transports) == 0 {
		return fmt.Errorf("%w: no transports configured", ErrAllTransportsFailed)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	subject := Subject(n.subjectPrefix, report)
	body := Render(report)

	var lastErr error
	for _, t := range n.transports {
		err := t.Send(ctx, rc.Recipients, subject, body)
		if err == nil {
			n.log.Info("notification delivered",
				"transport", t.Name(),
				"recipients", len(rc.Recipients),
			)
			return nil
		}
		n.log.Warn("notification transport failed",
			"transport", t.Name(),
			"error", err.Error(),
		)
		lastErr = err
	}

	return fmt.Errorf("%w: last error: %v", ErrAllTransportsFailed, lastErr)
}
