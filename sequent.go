package sequent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/internal/runtime"
	"github.com/openlms/sequent/internal/validator"
	"github.com/openlms/sequent/pkg/adapters/memory"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/ports"
)

// Engine is the high-level entry point for the sequent library. It wraps the
// internal runtime session and provides a simplified API for consumers. One
// Engine drives one learner session over one course manifest; it is safe for
// concurrent use.
type Engine struct {
	session *runtime.Session
	loader  ports.ManifestLoader
	logger  *slog.Logger
	opts    []runtime.Option
	Name    string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.opts = append(e.opts, runtime.WithHooks(hooks))
	}
}

// WithLoader injects a custom ManifestLoader, bypassing the direct manifest.
func WithLoader(l ports.ManifestLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBrowseMode enables permissive navigation for content inspection.
// Control modes and sequencing rules are bypassed; progress and rollup are
// tracked normally.
func WithBrowseMode() Option {
	return func(e *Engine) {
		e.opts = append(e.opts, runtime.WithBrowseMode(true))
	}
}

// WithMaxSequencingDepth bounds re-entrant rule dispatch per request.
func WithMaxSequencingDepth(depth int) Option {
	return func(e *Engine) {
		e.opts = append(e.opts, runtime.WithMaxSequencingDepth(depth))
	}
}

// WithClock injects a time source, used by time-limit conditions.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.opts = append(e.opts, runtime.WithClock(clock))
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.opts = append(e.opts, runtime.WithSessionID(id))
	}
}

// New initializes an Engine from a parsed manifest. The manifest is validated
// and compiled into an activity tree; structural problems (no launchable
// items, duplicate identifiers, cyclic nesting) fail construction. Pass a nil
// manifest together with WithLoader to load from an adapter instead.
func New(ctx context.Context, m *domain.Manifest, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if m == nil {
		if eng.loader == nil {
			return nil, fmt.Errorf("a manifest or a loader is required")
		}
		loaded, err := eng.loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		m = loaded
	} else if eng.loader == nil {
		eng.loader, _ = memory.NewLoader(m)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.Name = m.Identifier

	report := validator.Validate(m)
	for _, w := range report.Warnings {
		eng.logger.Warn("manifest validation", "detail", w)
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	sessOpts := append([]runtime.Option{runtime.WithLogger(eng.logger)}, eng.opts...)
	session, err := runtime.NewSession(m, sessOpts...)
	if err != nil {
		return nil, err
	}
	eng.session = session
	return eng, nil
}

// ID returns the session identifier.
func (e *Engine) ID() string {
	return e.session.ID()
}

// Initialize transitions the session to active. It must be called exactly
// once before any navigation or progress operation.
func (e *Engine) Initialize(ctx context.Context) (domain.InitResult, error) {
	return e.session.Initialize(ctx)
}

// Navigate processes one navigation request. The target is required for
// choice requests and ignored otherwise. Denied requests return a result
// with Success false and a machine-readable code; the error return is
// reserved for infrastructure failures.
func (e *Engine) Navigate(ctx context.Context, kind domain.NavigationRequest, target string) (domain.NavigationResult, error) {
	return e.session.Navigate(ctx, kind, target)
}

// UpdateProgress records attempt completion, satisfaction or a measure on an
// activity, triggers rollup, and dispatches post-condition rules.
func (e *Engine) UpdateProgress(ctx context.Context, activityID string, p domain.ProgressUpdate) (domain.ProgressResult, error) {
	return e.session.UpdateProgress(ctx, activityID, p)
}

// State reports the externally visible session state, including the valid
// navigation requests for the current position.
func (e *Engine) State() domain.SessionSnapshot {
	return e.session.State()
}

// Terminate ends the session after a final rollup pass. Ended is terminal.
func (e *Engine) Terminate(ctx context.Context) (domain.TerminateResult, error) {
	return e.session.Terminate(ctx)
}

// Snapshot captures the full persistable session state for a SnapshotStore.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.session.Snapshot()
}

// Restore loads a previously captured snapshot. The engine must have been
// built from the same manifest the snapshot was taken with.
func (e *Engine) Restore(snap *domain.Snapshot) error {
	return e.session.Restore(snap)
}

// Loader returns the underlying ManifestLoader used by the engine.
func (e *Engine) Loader() ports.ManifestLoader {
	return e.loader
}
