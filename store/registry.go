package store

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry resolves drivers by URL scheme.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

func (r *Registry) Register(scheme string, driver Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[strings.ToLower(scheme)] = driver
}

func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.drivers))
	for scheme := range r.drivers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Lookup returns the driver registered for the scheme of rawURL.
func (r *Registry) Lookup(rawURL string) (Driver, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	r.mu.RLock()
	driver, ok := r.drivers[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return driver, nil
}

// Open resolves the driver for rawURL and opens a session with it.
func (r *Registry) Open(rawURL string, creds Credentials) (Session, error) {
	driver, err := r.Lookup(rawURL)
	if err != nil {
		return nil, err
	}
	return driver.Open(rawURL, creds)
}
