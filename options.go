package gatewise

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/gatewise/gatewise/attribute"
	"github.com/gatewise/gatewise/hook"
	"github.com/gatewise/gatewise/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithAttributes sets the attribute store conditional grants resolve
// against. Without one, every non-context attribute resolves as absent.
func WithAttributes(a attribute.Store) Option { return func(e *Engine) { e.attributes = a } }

// WithEvaluator replaces the built-in condition evaluator.
func WithEvaluator(ev *Evaluator) Option { return func(e *Engine) { e.evaluator = ev } }

// WithClock sets the engine clock. Tests inject a fake clock here; the
// engine never reads the wall clock directly.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithCache sets the decision cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithHook registers a hook with the engine. Registration is deferred to
// NewEngine so the registry logs through the configured logger regardless
// of option order.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) { e.pendingHooks = append(e.pendingHooks, h) }
}
