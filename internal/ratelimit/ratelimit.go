// Package ratelimit gates publishes so the pipeline never exceeds the
// platform's tolerated posting frequency.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"snapflow/internal/logging"
)

// Scope granularity values.
const (
	ScopeUser   = "user"
	ScopeGlobal = "global"
)

// globalScope is the single ledger key used when the limiter runs in global
// mode.
const globalScope = "_global"

// Option customizes limiter construction.
type Option func(*Limiter)

// WithNow overrides the clock (used in tests).
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter tracks the last confirmed publish per scope and enforces a minimum
// delay between publishes within a scope. Different scopes never block each
// other; calls on the same scope are serialized by the ledger lock so two
// concurrent advancements cannot both pass the gate.
type Limiter struct {
	minDelay time.Duration
	scope    string
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	ledger map[string]time.Time
}

// New constructs a limiter. scope is ScopeUser or ScopeGlobal; minDelay is
// the required gap between successful publishes within one scope.
func New(minDelay time.Duration, scope string, logger *slog.Logger, opts ...Option) *Limiter {
	if scope != ScopeGlobal {
		scope = ScopeUser
	}
	l := &Limiter{
		minDelay: minDelay,
		scope:    scope,
		logger:   logging.NewComponentLogger(logger, "ratelimit"),
		now:      time.Now,
		ledger:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ScopeFor maps a user to the ledger key the limiter tracks them under.
func (l *Limiter) ScopeFor(user string) string {
	if l.scope == ScopeGlobal {
		return globalScope
	}
	return user
}

// CanPublishNow reports whether a publish in the given scope is allowed, and
// if not, how long until the gate opens.
func (l *Limiter) CanPublishNow(scope string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.ledger[scope]
	if !ok {
		return true, 0
	}
	elapsed := l.now().Sub(last)
	if elapsed >= l.minDelay {
		return true, 0
	}
	return false, l.minDelay - elapsed
}

// RecordPublish updates the ledger after a confirmed successful publish.
// Never call this speculatively: a failed publish recorded here would
// suppress legitimate later publishes.
func (l *Limiter) RecordPublish(scope string, at time.Time) {
	l.mu.Lock()
	l.ledger[scope] = at
	l.mu.Unlock()

	l.logger.Debug("publish recorded",
		logging.String("scope", scope),
		logging.String("at", at.UTC().Format(time.RFC3339)),
	)
}

// LastPublish returns the recorded timestamp for a scope, if any.
func (l *Limiter) LastPublish(scope string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.ledger[scope]
	return last, ok
}
