package core

import "sync"

// ── Encoder registry ──────────────────────────────────────────────────────────

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	encoders map[Format]Encoder
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{encoders: make(map[Format]Encoder)}
}

func (r *DefaultRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	r.encoders[f] = e
	r.mu.Unlock()
}

func (r *DefaultRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	e, ok := r.encoders[f]
	r.mu.RUnlock()
	return e, ok
}

// ── Handler registry ──────────────────────────────────────────────────────────

// HandlerRegistry dispatches an upload to the first registered Handler whose
// CanHandle returns true.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewHandlerRegistry returns a registry holding hs in priority order.
func NewHandlerRegistry(hs ...Handler) *HandlerRegistry {
	return &HandlerRegistry{handlers: append([]Handler(nil), hs...)}
}

// Register appends h; earlier handlers win ties.
func (r *HandlerRegistry) Register(h Handler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// Dispatch returns the handler for the given hints.
func (r *HandlerRegistry) Dispatch(filename, contentType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if h.CanHandle(filename, contentType) {
			return h, true
		}
	}
	return nil, false
}

// Names lists the registered handlers in dispatch order.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		out[i] = h.Name()
	}
	return out
}
