package hooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher fires lifecycle events at the listeners registered on their target
type Dispatcher struct {
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil logger disables logging.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Fire invokes every listener registered on ev.Target for ev.Name, in
// registration order. The first listener error stops the firing and is
// returned as is.
func (d *Dispatcher) Fire(ctx context.Context, ev Event) error {
	if !ev.Name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, string(ev.Name))
	}
	if ev.Target == nil {
		return fmt.Errorf("event %s has no target", ev.Name)
	}

	listeners := ev.Target.Listeners().For(ev.Name)
	if len(listeners) == 0 {
		return nil
	}

	d.logger.Debug("firing ddl event",
		zap.String("event", ev.Name.String()),
		zap.String("scope", ev.Scope.String()),
		zap.String("target", ev.Target.ObjectName()),
		zap.Int("listeners", len(listeners)),
	)

	for i, l := range listeners {
		if err := l.Invoke(ctx, freeze(ev)); err != nil {
			d.logger.Debug("ddl listener failed",
				zap.String("event", ev.Name.String()),
				zap.String("target", ev.Target.ObjectName()),
				zap.Int("position", i),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}

// freeze gives each listener its own copy of the member list
func freeze(ev Event) Event {
	if ev.Members != nil {
		members := make([]Target, len(ev.Members))
		copy(members, ev.Members)
		ev.Members = members
	}
	return ev
}
