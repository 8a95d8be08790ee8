// Package engine keeps groups, activities and mood entries consistent across
// their separately stored collections. It reconciles nested client views
// against storage, cascades activity removals into mood entries, rebuilds
// the nested views and checks the affected count of every batch.
//
// There are no transactions: a failed step leaves earlier steps applied and
// is reported to the caller.
package engine

import (
	"go.uber.org/zap"

	"moodsun/api/internal/ident"
	"moodsun/api/internal/store"
)

type Engine struct {
	backend store.Backend
	ids     ident.Generator
	log     *zap.Logger
	metrics *Metrics
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithIDs(ids ident.Generator) Option {
	return func(e *Engine) { e.ids = ids }
}

func New(backend store.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		ids:     ident.ObjectIDs(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	return e
}
