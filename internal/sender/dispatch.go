package sender

import (
	"context"
	"fmt"

	"wasender/pkg/logx"
)

// OutcomeKind classifies a single delivery attempt.
type OutcomeKind int

const (
	// OutcomeSent means the message left the device as far as the page shows.
	OutcomeSent OutcomeKind = iota
	// OutcomeNotFound means the number has no account or no chat opened in time.
	OutcomeNotFound
	// OutcomeTransportError means the attempt failed mechanically; Err says how.
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSent:
		return "sent"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of dispatching one message. Err is set only for
// OutcomeTransportError.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Dispatcher sends exactly one message to one phone number. Implementations
// must never panic across the boundary; anything that goes wrong comes back
// as an Outcome.
type Dispatcher interface {
	Send(ctx context.Context, phone, text string) Outcome
}

// Transport is the slice of the browser session the dispatcher needs.
type Transport interface {
	OpenConversation(ctx context.Context, phone string) (found bool, err error)
	SubmitMessage(ctx context.Context, text string) error
}

// NewDispatcher wraps a transport into a Dispatcher. Panics from the
// underlying automation are converted into transport errors so one bad
// contact cannot take the whole run down.
func NewDispatcher(t Transport, log logx.Logger) Dispatcher {
	return &transportDispatcher{t: t, log: log}
}

type transportDispatcher struct {
	t   Transport
	log logx.Logger
}

func (d *transportDispatcher) Send(ctx context.Context, phone, text string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panicked", logx.String("phone", phone), logx.Any("panic", r))
			out = Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("dispatch panic: %v", r)}
		}
	}()

	found, err := d.t.OpenConversation(ctx, phone)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("opening conversation: %w", err)}
	}
	if !found {
		return Outcome{Kind: OutcomeNotFound}
	}
	if err := d.t.SubmitMessage(ctx, text); err != nil {
		return Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("submitting message: %w", err)}
	}
	return Outcome{Kind: OutcomeSent}
}
