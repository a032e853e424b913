package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/health"
)

// stubEngine is the minimal Engine used for registry tests.
type stubEngine struct {
	dbType   dbcapabilities.DatabaseID
	features dbcapabilities.FeatureSet
	connects int
}

func (s *stubEngine) Type() dbcapabilities.DatabaseID { return s.dbType }

func (s *stubEngine) SupportedFeatures() dbcapabilities.FeatureSet { return s.features }

func (s *stubEngine) Connect(ctx context.Context, config ConnectionConfig) (Connection, error) {
	s.connects++
	return nil, errors.New("stub engine has no connections")
}

func (s *stubEngine) HealthCheck(ctx context.Context, config ConnectionConfig) health.Report {
	return health.Report{Status: health.StatusHealthy}
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		eng := &stubEngine{dbType: dbcapabilities.PostgreSQL}
		r.Register(eng)

		got, err := r.Get(dbcapabilities.PostgreSQL)
		require.NoError(t, err)
		assert.Same(t, eng, got)
		assert.True(t, r.IsRegistered(dbcapabilities.PostgreSQL))
	})

	t.Run("get by alias", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubEngine{dbType: dbcapabilities.PostgreSQL})

		got, err := r.GetByName("postgresql")
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.PostgreSQL, got.Type())
	})

	t.Run("missing engine", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Get(dbcapabilities.Redis)
		assert.True(t, errors.Is(err, ErrEngineNotFound))

		_, err = r.GetByName("not-a-database")
		assert.True(t, errors.Is(err, ErrEngineNotFound))
	})

	t.Run("unregister", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubEngine{dbType: dbcapabilities.Redis})
		r.Unregister(dbcapabilities.Redis)
		assert.False(t, r.IsRegistered(dbcapabilities.Redis))
	})

	t.Run("list registered", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubEngine{dbType: dbcapabilities.Redis})
		r.Register(&stubEngine{dbType: dbcapabilities.MongoDB})
		assert.ElementsMatch(t,
			[]dbcapabilities.DatabaseID{dbcapabilities.Redis, dbcapabilities.MongoDB},
			r.ListRegistered())
	})

	t.Run("connect validates the config first", func(t *testing.T) {
		r := NewRegistry()
		eng := &stubEngine{dbType: dbcapabilities.PostgreSQL}
		r.Register(eng)

		_, err := r.Connect(context.Background(), ConnectionConfig{ConnectionType: "postgres"})
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		assert.Zero(t, eng.connects, "invalid config must not reach the engine")
	})
}
