package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Statement is a server-side prepared statement. pgx executes it by its
// assigned name.
type Statement struct {
	conn       *Connection
	name       string
	paramCount int

	mu     sync.Mutex
	closed bool
}

func (s *Statement) ParameterCount() int { return s.paramCount }

func (s *Statement) Query(ctx context.Context, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if err := s.check(params); err != nil {
		return nil, err
	}
	return runQuery(ctx, s.conn.conn, s.name, params)
}

func (s *Statement) Execute(ctx context.Context, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if err := s.check(params); err != nil {
		return nil, err
	}
	return runExec(ctx, s.conn.conn, s.name, params)
}

func (s *Statement) check(params []dbvalue.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return adapter.NewValidationError("prepared statement", "statement is closed")
	}
	if len(params) != s.paramCount {
		return adapter.NewValidationError("prepared statement", "parameter count mismatch")
	}
	return nil
}

// Close deallocates the statement on the server.
func (s *Statement) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.conn.Deallocate(ctx, s.name)
}
