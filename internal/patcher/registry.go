package patcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
)

// ErrDuplicateHandler is returned when two handlers target the same worldspace.
var ErrDuplicateHandler = errors.New("worldspace already has a handler")

// Sink receives finished region maps for persistence.
// Declared in the consuming package per Go interface conventions.
type Sink interface {
	SaveRegionMap(ctx context.Context, m *regionmap.RegionMap) error
}

// Registry holds the handlers of one run. Owned by the caller; not safe for
// concurrent Register calls.
type Registry struct {
	handlers []*Handler
	sinks    []Sink
}

// NewRegistry creates an empty registry writing to sinks.
func NewRegistry(sinks ...Sink) *Registry {
	return &Registry{sinks: sinks}
}

// Register adds a handler.
func (r *Registry) Register(h *Handler) error {
	if existing, ok := r.HandlerFor(h.Worldspace()); ok {
		return fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateHandler, h.Worldspace(), existing.Name(), h.Name())
	}
	r.handlers = append(r.handlers, h)
	slog.Info("added worldspace handler", "name", h.Name(), "worldspace", h.Worldspace().String())
	return nil
}

// HandlerFor returns the handler that applies to worldspace.
func (r *Registry) HandlerFor(worldspace model.FormKey) (*Handler, bool) {
	for _, h := range r.handlers {
		if h.AppliesTo(worldspace) {
			return h, true
		}
	}
	return nil, false
}

// Handlers returns the registered handlers in registration order.
func (r *Registry) Handlers() []*Handler { return r.handlers }

// Run processes every worldspace that has a handler: each sink receives the
// handler's map. A failing worldspace is logged and the run continues with
// the next one; all failures are returned joined.
// Returns the number of worldspaces processed without error.
func (r *Registry) Run(ctx context.Context, worldspaces []model.FormKey) (int, error) {
	var (
		processed int
		errs      []error
	)

	for _, ws := range worldspaces {
		if err := ctx.Err(); err != nil {
			return processed, errors.Join(append(errs, err)...)
		}

		h, ok := r.HandlerFor(ws)
		if !ok {
			slog.Debug("no handler for worldspace", "worldspace", ws.String())
			continue
		}

		if err := r.process(ctx, h); err != nil {
			slog.Error("processing worldspace failed", "worldspace", h.Name(), "err", err)
			errs = append(errs, fmt.Errorf("worldspace %s: %w", h.Name(), err))
			continue
		}

		processed++
		slog.Info("finished processing worldspace", "worldspace", h.Name())
	}

	return processed, errors.Join(errs...)
}

func (r *Registry) process(ctx context.Context, h *Handler) error {
	for _, s := range r.sinks {
		if err := s.SaveRegionMap(ctx, h.RegionMap()); err != nil {
			return err
		}
	}
	return nil
}
