// Package notify fans the execution summary out to the configured
// notification sinks. Sinks fail independently: a delivery error is
// classified, logged, and dropped, never propagated back into the
// run. Secret-bearing values are redacted from the rendered text
// before it leaves the process.
package notify

import (
	"context"

	"github.com/lunarbay/rollcall/pkg/config"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/types"
)

// Payload is one rendered notification. Artifact references are
// attached opportunistically; a missing file degrades the payload,
// never the delivery.
type Payload struct {
	Text      string
	Artifacts types.Artifacts
}

// Sink delivers one payload to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, payload Payload) error
}

// Dispatcher renders a summary once and fans it out to every sink.
type Dispatcher struct {
	sinks  []Sink
	masker *config.Masker
	log    *logging.Logger
}

// NewDispatcher builds a dispatcher over the given sinks. The masker
// may be nil when there are no secrets to redact.
func NewDispatcher(log *logging.Logger, masker *config.Masker, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, masker: masker, log: log}
}

// Dispatch delivers the summary to every sink. One sink's failure is
// logged and does not block the others.
func (d *Dispatcher) Dispatch(ctx context.Context, summary types.ExecutionSummary, artifacts types.Artifacts) {
	if len(d.sinks) == 0 {
		d.log.Debug("no notification sinks configured")
		return
	}

	text := RenderSummary(summary)
	if d.masker != nil {
		text = d.masker.Redact(text)
	}
	payload := Payload{Text: text, Artifacts: artifacts}

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, payload); err != nil {
			d.log.Error(rcerrors.NewSinkError(sink.Name(), err), "notification delivery failed")
			continue
		}
		d.log.WithFields(map[string]any{"sink": sink.Name()}).Info("notification delivered")
	}
}
