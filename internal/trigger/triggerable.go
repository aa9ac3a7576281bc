package trigger

import (
	"context"
	"errors"
	"strings"

	"l10nsched/internal/builddb"
	"l10nsched/internal/fanout"
	"l10nsched/internal/properties"
)

// TriggerReason is the reason recorded on buildsets created by an
// upstream-completion trigger.
const TriggerReason = "This build was triggered by the successful completion of the en-US nightly."

// Triggerable is a named scheduler that fans one upstream source stamp
// out into per-locale builds. It implements fanout.Capability and hands
// itself to its controller, so the controller composes with the scheduler
// instead of inheriting from it.
type Triggerable struct {
	name     string
	builders []string
	ctrl     *fanout.Controller
}

// NewTriggerable builds the scheduler and its fan-out controller.
// deps.Scheduler is set to the new Triggerable; any value the caller put
// there is ignored.
func NewTriggerable(name string, builders []string, cfg fanout.Config, deps fanout.Deps) (*Triggerable, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("trigger: scheduler name required")
	}
	if len(builders) == 0 {
		return nil, errors.New("trigger: at least one builder required")
	}
	t := &Triggerable{
		name:     name,
		builders: append([]string(nil), builders...),
	}
	deps.Scheduler = t
	ctrl, err := fanout.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	t.ctrl = ctrl
	return t, nil
}

func (t *Triggerable) Name() string { return t.name }

func (t *Triggerable) BuilderNames() []string {
	return append([]string(nil), t.builders...)
}

// Controller exposes the fan-out controller (CLI and tests).
func (t *Triggerable) Controller() *fanout.Controller { return t.ctrl }

// Trigger runs one fan-out for an upstream completion. The upstream
// revision picks the locale list to fetch; the enqueued sourcestamps
// reference the configured branch.
func (t *Triggerable) Trigger(ctx context.Context, ss builddb.SourceStamp, extra *properties.Set) ([]builddb.EnqueueResult, error) {
	return t.ctrl.FanOut(ctx, ss.Revision, TriggerReason, extra)
}
