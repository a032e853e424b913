package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
)

// ErrEngineNotFound is returned when an engine is not registered.
var ErrEngineNotFound = fmt.Errorf("engine not found")

// Registry manages the registration and retrieval of database engines.
// Engines are selected at configuration time by their declared type; the core
// never branches on a backend name.
type Registry struct {
	engines map[dbcapabilities.DatabaseID]Engine
	mu      sync.RWMutex
}

// NewRegistry creates a new engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[dbcapabilities.DatabaseID]Engine),
	}
}

// Register registers a database engine.
// If an engine for the same database type is already registered, it will be replaced.
func (r *Registry) Register(engine Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.engines[engine.Type()] = engine
}

// Get retrieves a registered engine by database type.
// Returns ErrEngineNotFound if the engine is not registered.
func (r *Registry) Get(dbType dbcapabilities.DatabaseID) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[dbType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, dbType)
	}

	return engine, nil
}

// GetByName retrieves a registered engine by database name or alias.
func (r *Registry) GetByName(name string) (Engine, error) {
	dbType, ok := dbcapabilities.ParseID(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown database type '%s'", ErrEngineNotFound, name)
	}

	return r.Get(dbType)
}

// IsRegistered checks if an engine is registered for the given database type.
func (r *Registry) IsRegistered(dbType dbcapabilities.DatabaseID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.engines[dbType]
	return exists
}

// ListRegistered returns a list of all registered database types.
func (r *Registry) ListRegistered() []dbcapabilities.DatabaseID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]dbcapabilities.DatabaseID, 0, len(r.engines))
	for dbType := range r.engines {
		types = append(types, dbType)
	}

	return types
}

// Unregister removes an engine from the registry.
func (r *Registry) Unregister(dbType dbcapabilities.DatabaseID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.engines, dbType)
}

// Connect creates a new database connection using the registered engine for
// the configured type. The configuration is validated first.
func (r *Registry) Connect(ctx context.Context, config ConnectionConfig) (Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dbType, _ := dbcapabilities.ParseID(config.ConnectionType)
	engine, err := r.Get(dbType)
	if err != nil {
		return nil, err
	}

	conn, err := engine.Connect(ctx, config)
	if err != nil {
		return nil, WrapError(dbType, "connect", err)
	}

	return conn, nil
}

// globalRegistry is the default global engine registry.
var globalRegistry = NewRegistry()

// Register registers an engine in the global registry.
func Register(engine Engine) {
	globalRegistry.Register(engine)
}

// Get retrieves an engine from the global registry.
func Get(dbType dbcapabilities.DatabaseID) (Engine, error) {
	return globalRegistry.Get(dbType)
}

// GetByName retrieves an engine from the global registry by name.
func GetByName(name string) (Engine, error) {
	return globalRegistry.GetByName(name)
}

// IsRegistered checks if an engine is registered in the global registry.
func IsRegistered(dbType dbcapabilities.DatabaseID) bool {
	return globalRegistry.IsRegistered(dbType)
}

// GlobalRegistry returns the global engine registry.
func GlobalRegistry() *Registry {
	return globalRegistry
}
