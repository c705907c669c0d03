package labels

import "sync"

// Properties is a raw configuration payload. Its entries form the highest
// precedence tier during label collection.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties creates an empty payload.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// FromMap creates a payload seeded with a copy of m.
func FromMap(m map[string]string) *Properties {
	p := NewProperties()
	for k, v := range m {
		p.values[k] = v
	}
	return p
}

// Get returns the value for key, or "" if unset.
func (p *Properties) Get(key string) string {
	v, _ := p.Lookup(key)
	return v
}

// Lookup returns the value for key and whether it is set.
func (p *Properties) Lookup(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores a value.
func (p *Properties) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// Snapshot returns a copy of all entries.
func (p *Properties) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (p *Properties) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}
