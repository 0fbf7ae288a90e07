package ragged

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-raggedpool/internal/backend"
	"github.com/example/go-raggedpool/internal/backend/cpu"
	"github.com/example/go-raggedpool/internal/backend/webgpu"
	"github.com/example/go-raggedpool/internal/config"
	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// Engine runs pooling and hashing operations on one backend. Its registry
// is built once by New and shared, read-only, by engines derived from it
// with WithGroupSize. An Engine is safe for concurrent use as long as
// concurrent calls do not share output buffers.
type Engine struct {
	backend  backend.Backend
	registry *kernels.Registry
	planner  launch.Planner
	logger   *slog.Logger
}

type options struct {
	logger    *slog.Logger
	groupSize int
	policy    launch.Policy
	pool      kernels.Document
	hash      kernels.Document
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithGroupSize sets the lanes per execution group. The default is
// launch.DefaultGroupSize.
func WithGroupSize(n int) Option {
	return func(o *options) { o.groupSize = n }
}

// WithPolicy sets the launch planner policy.
func WithPolicy(p launch.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithDocuments replaces the built-in kernel documents.
func WithDocuments(pool, hash kernels.Document) Option {
	return func(o *options) {
		o.pool = pool
		o.hash = hash
	}
}

// New builds an engine on be. The kernel documents are always checked for
// their expected entry points; a missing one is fatal. When be is
// unavailable nothing is bound and every operation reports
// ErrBackendUnavailable or ErrUnsupported.
func New(be backend.Backend, opts ...Option) (*Engine, error) {
	o := options{
		logger:    slog.Default(),
		groupSize: launch.DefaultGroupSize,
		policy:    launch.PolicyUnified,
		pool:      kernels.PoolDocument(),
		hash:      kernels.HashDocument(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	planner, err := launch.NewPlanner(o.groupSize, o.policy)
	if err != nil {
		return nil, &ContractViolationError{Op: "new", Reason: err.Error()}
	}

	var compiler kernels.Compiler
	if be.Available() {
		compiler = be
	}

	registry, err := kernels.NewRegistry(compiler, o.pool, o.hash)
	if err != nil {
		return nil, fmt.Errorf("ragged: %w", err)
	}

	if registry.Bound() {
		o.logger.Debug("kernels bound",
			slog.String("backend", be.Name()),
			slog.String("device", be.Device()),
			slog.Any("entry_points", registry.Names()),
		)
	}

	return &Engine{
		backend:  be,
		registry: registry,
		planner:  planner,
		logger:   o.logger,
	}, nil
}

// Open resolves the backend named by cfg and builds an engine on it. A
// backend that cannot be brought up does not fail Open; the engine is
// returned unavailable and the reason is logged once at warn level.
func Open(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := config.NormalizePolicy(cfg.Launch.Policy)
	if err != nil {
		return nil, err
	}

	be, err := resolveBackend(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}

	e, err := New(be,
		WithLogger(logger),
		WithGroupSize(cfg.Launch.GroupSize),
		WithPolicy(launch.Policy(policy)),
	)
	if err != nil {
		_ = be.Close()
		return nil, err
	}

	return e, nil
}

func resolveBackend(cfg config.BackendConfig, logger *slog.Logger) (backend.Backend, error) {
	name, err := config.NormalizeBackend(cfg.Name)
	if err != nil {
		return nil, err
	}

	switch name {
	case config.BackendCPU:
		return cpu.New(cfg.Workers), nil
	case config.BackendWebGPU:
		gpu, err := webgpu.New()
		if err != nil {
			logger.Warn("compute backend unavailable", slog.String("backend", name), slog.String("reason", err.Error()))
			return backend.Unavailable(name, err), nil
		}
		return gpu, nil
	case config.BackendAuto:
		gpu, err := webgpu.New()
		if err != nil {
			logger.Info("webgpu unavailable, using cpu", slog.String("reason", err.Error()))
			return cpu.New(cfg.Workers), nil
		}
		return gpu, nil
	default:
		reason := errors.New("disabled by configuration")
		logger.Warn("compute backend unavailable", slog.String("backend", name), slog.String("reason", reason.Error()))
		return backend.Unavailable(name, reason), nil
	}
}

// Available reports whether operations run. It is fixed for the engine's
// lifetime.
func (e *Engine) Available() bool { return e.registry.Bound() }

// Backend returns the backend the engine was built on.
func (e *Engine) Backend() backend.Backend { return e.backend }

// Device describes where kernels execute, or "none".
func (e *Engine) Device() string { return e.backend.Device() }

// Registry returns the engine's kernel registry.
func (e *Engine) Registry() *kernels.Registry { return e.registry }

// Planner returns the engine's launch planner.
func (e *Engine) Planner() launch.Planner { return e.planner }

// WithGroupSize returns an engine sharing e's backend and registry that
// launches n lanes per group.
func (e *Engine) WithGroupSize(n int) (*Engine, error) {
	planner, err := e.planner.WithGroupSize(n)
	if err != nil {
		return nil, &ContractViolationError{Op: "group size", Reason: err.Error()}
	}

	derived := *e
	derived.planner = planner

	return &derived, nil
}

// Close releases the backend. Engines derived with WithGroupSize share it
// and must not be used afterwards.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// run plans and launches entry over extent work items.
func (e *Engine) run(ctx context.Context, op launch.Op, entry string, extent int, args *kernels.Args) error {
	k, err := e.registry.Lookup(entry)
	if err != nil {
		return fmt.Errorf("ragged: %s: %w", op, err)
	}

	planned := e.planner.Plan(op, extent)
	shape := planned.Clamp(extent)
	if shape != planned {
		e.logger.Debug("raised zero-group launch",
			slog.String("op", op.String()),
			slog.Int("extent", extent),
			slog.String("planned", planned.String()),
		)
	}

	if err := k.Launch(ctx, shape, args); err != nil {
		return fmt.Errorf("ragged: %s: %w", op, err)
	}

	return nil
}
