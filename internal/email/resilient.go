package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"consentry/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without calling the wrapped transport while the
// breaker is open.
var ErrCircuitOpen = errors.New("email transport unavailable: circuit open")

// Resilient fails sends fast while the wrapped provider keeps failing.
// Invalid messages and cancelled contexts do not count as provider faults.
type Resilient struct {
	next    Transport
	breaker *circuit.Breaker
}

// NewResilient wraps next in a breaker named name. IsFailure and
// OnTransition in cfg are overwritten.
func NewResilient(next Transport, name string, cfg circuit.Settings, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.IsFailure = providerFault
	cfg.OnTransition = func(name string, from, to circuit.State) {
		level := slog.LevelInfo
		if to == circuit.StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "email circuit "+to.String(),
			"breaker", name, "from", from.String())
	}
	return &Resilient{next: next, breaker: circuit.New(name, cfg)}
}

func providerFault(err error) bool {
	return !errors.Is(err, ErrInvalidMessage) && !errors.Is(err, context.Canceled)
}

func (r *Resilient) Send(ctx context.Context, msg Message) error {
	err := r.breaker.Do(func() error { return r.next.Send(ctx, msg) })
	if errors.Is(err, circuit.ErrOpen) {
		return fmt.Errorf("%w (%s)", ErrCircuitOpen, r.breaker.Name())
	}
	return err
}

// State exposes the breaker state for health reporting.
func (r *Resilient) State() circuit.State {
	return r.breaker.State()
}
