package storeadapter

import (
	"github.com/nickyhof/storeadapter/adapter"
	"github.com/nickyhof/storeadapter/client"
	"github.com/nickyhof/storeadapter/db"
	"github.com/nickyhof/storeadapter/store"
)

// DefaultRegistry returns a registry serving memory:// and file:// stores
// in process and tcp:// and tls:// stores over the network.
func DefaultRegistry() *store.Registry {
	registry := store.NewRegistry()

	local := db.NewDriver()
	registry.Register("memory", local)
	registry.Register("file", local)

	remote := client.NewDriver()
	registry.Register("tcp", remote)
	registry.Register("tls", remote)
	return registry
}

// Open builds an adapter over the default registry and connects it.
func Open(config adapter.Config, opts ...adapter.Option) (*adapter.Adapter, error) {
	a, err := adapter.New(config, DefaultRegistry(), opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(); err != nil {
		return nil, err
	}
	return a, nil
}
