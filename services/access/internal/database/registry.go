// Package database wires the built-in backend engines into an adapter
// registry.
package database

import (
	"github.com/databridge-io/databridge/pkg/adapter"

	"github.com/databridge-io/databridge/services/access/internal/database/mongodb"
	"github.com/databridge-io/databridge/services/access/internal/database/postgres"
	"github.com/databridge-io/databridge/services/access/internal/database/redis"
)

// RegisterAll registers every built-in engine in the given registry.
func RegisterAll(r *adapter.Registry) {
	r.Register(postgres.NewEngine())
	r.Register(redis.NewEngine())
	r.Register(mongodb.NewEngine())
}
