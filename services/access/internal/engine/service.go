// Package engine is the access service core: it turns configured databases
// into pooled, capability-checked, resilience-guarded engines and exposes the
// query, command, schema, batch and transaction operations on top of them.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/config"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
	"github.com/databridge-io/databridge/pkg/health"
	"github.com/databridge-io/databridge/pkg/pool"
	"github.com/databridge-io/databridge/pkg/safety"
	"github.com/databridge-io/databridge/pkg/transaction"
)

// Service coordinates every database operation: security validation first,
// then the resilience funnel, then a pooled connection against the backend.
type Service struct {
	cfg       *config.Config
	registry  *adapter.Registry
	pools     *pool.Manager
	safety    *safety.SafetyManager
	txManager *transaction.Manager
	validator SecurityValidator
	checker   *health.Checker
	logger    *zap.Logger
}

// NewService builds the service from configuration. Every configured database
// must resolve to a registered engine.
func NewService(cfg *config.Config, registry *adapter.Registry, validator SecurityValidator, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = AllowAllValidator{}
	}

	breaker := safety.NewCircuitBreaker("access", cfg.Safety.Breaker, logger)
	monitor := safety.NewResourceMonitor(cfg.Safety.MaxResourceSlots, logger)
	sm := safety.NewSafetyManager(cfg.Safety.Timeouts, breaker, monitor, logger)
	pools := pool.NewManager(sm, logger)

	s := &Service{
		cfg:       cfg,
		registry:  registry,
		pools:     pools,
		safety:    sm,
		txManager: transaction.NewManager(logger),
		validator: validator,
		checker:   health.NewChecker(),
		logger:    logger.Named("engine"),
	}

	for id, db := range cfg.Databases {
		eng, err := registry.GetByName(db.Connection.ConnectionType)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", id, err)
		}
		if _, err := pools.AddEngine(id, eng, db.Connection, db.Pool); err != nil {
			return nil, fmt.Errorf("database %q: %w", id, err)
		}
	}
	return s, nil
}

// Safety exposes the resilience layer, e.g. for emergency-shutdown control.
func (s *Service) Safety() *safety.SafetyManager {
	return s.safety
}

// Pools exposes the pool manager.
func (s *Service) Pools() *pool.Manager {
	return s.pools
}

// Start warms the pools flagged for warm-up.
func (s *Service) Start(ctx context.Context) error {
	for id, db := range s.cfg.Databases {
		if !db.WarmUp {
			continue
		}
		p, err := s.pools.GetPool(id)
		if err != nil {
			return err
		}
		if err := p.WarmUp(ctx); err != nil {
			return fmt.Errorf("warming pool %q: %w", id, err)
		}
		s.logger.Info("pool warmed", zap.String("engine_id", id))
	}
	return nil
}

// Stop drains every pool.
func (s *Service) Stop() error {
	return s.pools.Close()
}

// Features returns the declared capability set of the engine behind the
// identifier, without touching the backend.
func (s *Service) Features(engineID string) (dbcapabilities.FeatureSet, error) {
	p, err := s.pools.GetPool(engineID)
	if err != nil {
		return nil, err
	}
	return p.Engine().SupportedFeatures(), nil
}

// ExecuteQuery runs a row-returning statement on the identified engine.
func (s *Service) ExecuteQuery(ctx context.Context, engineID, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if err := s.validator.ValidateStatement(ctx, engineID, text); err != nil {
		return nil, err
	}

	queriesTotal.Add(1)
	var result *adapter.QueryResult
	err := s.safety.SafeExecuteWithTimeout(ctx, "query", s.safety.Timeouts().Query, func(ctx context.Context) error {
		return s.withConnection(ctx, engineID, func(conn adapter.Connection) error {
			r, err := conn.Query(ctx, text, params)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteCommand runs a non-returning statement on the identified engine.
func (s *Service) ExecuteCommand(ctx context.Context, engineID, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if err := s.validator.ValidateStatement(ctx, engineID, text); err != nil {
		return nil, err
	}

	commandsTotal.Add(1)
	var result *adapter.ExecuteResult
	err := s.safety.SafeExecuteWithTimeout(ctx, "execute", s.safety.Timeouts().Query, func(ctx context.Context) error {
		return s.withConnection(ctx, engineID, func(conn adapter.Connection) error {
			r, err := conn.Execute(ctx, text, params)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BatchCommand is one entry of a command group.
type BatchCommand struct {
	Text   string
	Params []dbvalue.Value
}

// ExecuteBatch queues the given commands as one atomic command group on a
// backend declaring batched commands, and executes it in a single round trip.
func (s *Service) ExecuteBatch(ctx context.Context, engineID string, commands []BatchCommand) ([]*adapter.ExecuteResult, error) {
	if len(commands) == 0 {
		return nil, adapter.NewValidationError("batch", "no commands queued")
	}
	for _, cmd := range commands {
		if err := s.validator.ValidateStatement(ctx, engineID, cmd.Text); err != nil {
			return nil, err
		}
	}

	features, err := s.Features(engineID)
	if err != nil {
		return nil, err
	}
	p, _ := s.pools.GetPool(engineID)
	if err := adapter.RequireFeature(p.Engine().Type(), features, dbcapabilities.FeatureBatchedCommands, "batched commands"); err != nil {
		return nil, err
	}

	batchesTotal.Add(1)
	var results []*adapter.ExecuteResult
	err = s.safety.SafeExecuteWithTimeout(ctx, "batch", s.safety.Timeouts().Query, func(ctx context.Context) error {
		return s.withConnection(ctx, engineID, func(conn adapter.Connection) error {
			batch, err := conn.BeginBatch(ctx)
			if err != nil {
				return err
			}
			for _, cmd := range commands {
				if err := batch.Queue(cmd.Text, cmd.Params); err != nil {
					_ = batch.Discard()
					return err
				}
			}
			r, err := batch.Execute(ctx)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetSchema introspects the identified engine. The capability check happens
// before a connection is acquired.
func (s *Service) GetSchema(ctx context.Context, engineID string) (*adapter.SchemaInfo, error) {
	features, err := s.Features(engineID)
	if err != nil {
		return nil, err
	}
	p, _ := s.pools.GetPool(engineID)
	if err := adapter.RequireFeature(p.Engine().Type(), features, dbcapabilities.FeatureSchemaIntrospection, "schema introspection"); err != nil {
		return nil, err
	}

	var info *adapter.SchemaInfo
	err = s.safety.SafeExecute(ctx, "schema", func(ctx context.Context) error {
		return s.withConnection(ctx, engineID, func(conn adapter.Connection) error {
			i, err := conn.Schema(ctx)
			if err != nil {
				return err
			}
			info = i
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// BeginTransaction starts a managed transaction on a dedicated pooled
// connection. The connection stays owned by the returned handle until its
// terminal call.
func (s *Service) BeginTransaction(ctx context.Context, engineID string, opts adapter.TxOptions) (*Tx, error) {
	features, err := s.Features(engineID)
	if err != nil {
		return nil, err
	}
	p, _ := s.pools.GetPool(engineID)
	if err := adapter.RequireFeature(p.Engine().Type(), features, dbcapabilities.FeatureTransactions, "transactions"); err != nil {
		return nil, err
	}

	var handle *Tx
	err = s.safety.SafeExecuteWithTimeout(ctx, "begin_transaction", s.safety.Timeouts().ConnectionAcquire, func(ctx context.Context) error {
		pc, err := s.pools.Acquire(ctx, engineID)
		if err != nil {
			return err
		}

		managed, err := s.txManager.Begin(ctx, pc.Connection(), opts)
		if err != nil {
			_ = pc.Release()
			return err
		}

		transactionsTotal.Add(1)
		handle = &Tx{ManagedTransaction: managed, pc: pc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// HealthCheck probes one engine under the health-check budget and records the
// report in the aggregate checker.
func (s *Service) HealthCheck(ctx context.Context, engineID string) (health.Report, error) {
	p, err := s.pools.GetPool(engineID)
	if err != nil {
		return health.Report{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.safety.Timeouts().HealthCheck)
	defer cancel()

	db := s.cfg.Databases[engineID]
	report := p.Engine().HealthCheck(ctx, db.Connection)
	s.checker.SetCheck(engineID, report)
	return report, nil
}

// OverallHealth aggregates the most recent per-engine reports.
func (s *Service) OverallHealth() health.Status {
	return s.checker.GetOverallStatus()
}

// Checks returns the most recent per-engine health checks.
func (s *Service) Checks() []*health.Check {
	return s.checker.GetAllChecks()
}

// withConnection runs op with a pooled connection, marking it broken on any
// failure so it is closed instead of reused.
func (s *Service) withConnection(ctx context.Context, engineID string, op func(adapter.Connection) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.safety.Timeouts().ConnectionAcquire)
	pc, err := s.pools.Acquire(acquireCtx, engineID)
	cancel()
	if err != nil {
		return err
	}

	start := time.Now()
	opErr := op(pc.Connection())
	if opErr != nil && !adapter.IsValidation(opErr) && !adapter.IsUnsupported(opErr) {
		pc.MarkBroken()
		s.logger.Warn("connection marked broken",
			zap.String("engine_id", engineID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(opErr))
	}
	if err := pc.Release(); err != nil {
		s.logger.Warn("connection release failed", zap.String("engine_id", engineID), zap.Error(err))
	}
	return opErr
}
