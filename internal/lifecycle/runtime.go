// Package lifecycle starts and stops warden's long-running services. The
// broadcast dispatcher is the main tenant: it must come up before the update
// loop feeds it jobs and drain its in-flight send on the way down.
package lifecycle

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running service with a bounded shutdown: Stop must
// respect the deadline of the context it is given.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Runtime struct {
	components []Component
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{components: components}
}

// Start brings components up in registration order. A failure rolls back the
// ones already started, in reverse, before reporting.
func (r *Runtime) Start(ctx context.Context) error {
	for i, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			if stopErr := r.stop(ctx, i); stopErr != nil {
				r.getLogEntry().WithField("error", stopErr.Error()).Warn("rollback stop failed")
			}
			return errors.Join(errors.New("start component"), err)
		}
	}
	return nil
}

// Stop tears components down in reverse start order; every component gets its
// Stop called even when an earlier one fails.
func (r *Runtime) Stop(ctx context.Context) error {
	return r.stop(ctx, len(r.components))
}

func (r *Runtime) stop(ctx context.Context, upTo int) error {
	var stopErr error
	for i := upTo - 1; i >= 0; i-- {
		component := r.components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, err)
		}
	}
	return stopErr
}

func (r *Runtime) getLogEntry() *log.Entry {
	return log.WithField("context", "lifecycle")
}
