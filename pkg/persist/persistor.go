package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/resilience"
)

// ErrNotWhitelisted is returned for slices outside the persist whitelist
var ErrNotWhitelisted = errors.New("persist: slice not whitelisted")

// Persistor writes whitelisted state slices as JSON under "<root>:<slice>"
type Persistor struct {
	backend   Backend
	root      string
	whitelist map[string]struct{}
	sealer    *Sealer
	breaker   *resilience.CircuitBreaker
	log       *logger.Logger
}

// PersistorOption customizes a Persistor
type PersistorOption func(*Persistor)

// WithSealer encrypts values before they reach the backend
func WithSealer(s *Sealer) PersistorOption {
	return func(p *Persistor) { p.sealer = s }
}

// WithBreaker routes backend calls through cb
func WithBreaker(cb *resilience.CircuitBreaker) PersistorOption {
	return func(p *Persistor) { p.breaker = cb }
}

// WithLogger sets the persistor logger
func WithLogger(l *logger.Logger) PersistorOption {
	return func(p *Persistor) { p.log = l }
}

// NewPersistor creates a persistor for the given root key and whitelist
func NewPersistor(backend Backend, root string, whitelist []string, opts ...PersistorOption) *Persistor {
	p := &Persistor{
		backend:   backend,
		root:      root,
		whitelist: make(map[string]struct{}, len(whitelist)),
	}
	for _, s := range whitelist {
		p.whitelist[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.Or(p.log)
	if p.breaker == nil {
		p.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("persist:"+backend.Name()), p.log)
	}
	return p
}

// Key returns the backend key of slice
func (p *Persistor) Key(slice string) string {
	return p.root + ":" + slice
}

// Allowed reports whether slice is whitelisted
func (p *Persistor) Allowed(slice string) bool {
	_, ok := p.whitelist[slice]
	return ok
}

// Save stores v as the value of slice
func (p *Persistor) Save(ctx context.Context, slice string, v any) error {
	if !p.Allowed(slice) {
		return ErrNotWhitelisted
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: encode %s: %w", slice, err)
	}
	key := p.Key(slice)
	if p.sealer != nil {
		if data, err = p.sealer.Seal(data, []byte(key)); err != nil {
			return err
		}
	}

	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.backend.Set(ctx, key, data)
	})
}

// Load decodes the stored value of slice into v. found is false when nothing
// has been stored yet.
func (p *Persistor) Load(ctx context.Context, slice string, v any) (found bool, err error) {
	if !p.Allowed(slice) {
		return false, ErrNotWhitelisted
	}

	key := p.Key(slice)
	var data []byte
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		var getErr error
		data, getErr = p.backend.Get(ctx, key)
		if errors.Is(getErr, ErrNotFound) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	if p.sealer != nil {
		if data, err = p.sealer.Open(data, []byte(key)); err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("persist: decode %s: %w", slice, err)
	}
	return true, nil
}

// Purge removes the stored value of slice
func (p *Persistor) Purge(ctx context.Context, slice string) error {
	if !p.Allowed(slice) {
		return ErrNotWhitelisted
	}
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.backend.Delete(ctx, p.Key(slice))
	})
}

// Backend returns the underlying store
func (p *Persistor) Backend() Backend {
	return p.backend
}

// BreakerState exposes the state of the persistence circuit breaker
func (p *Persistor) BreakerState() resilience.CircuitBreakerState {
	return p.breaker.GetState()
}
