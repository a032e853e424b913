package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Batch is a MULTI/EXEC command group. Commands queue locally and are sent in
// one round trip on Execute; Redis applies them together without interleaving
// other clients, but there is no isolation level and no partial rollback.
type Batch struct {
	pipe goredis.Pipeliner

	mu       sync.Mutex
	queued   int
	consumed bool
}

func (b *Batch) Queue(text string, params []dbvalue.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return adapter.NewValidationError("batch", "command group already consumed")
	}

	args, err := buildCommand(text, params)
	if err != nil {
		return err
	}
	b.pipe.Do(context.Background(), args...)
	b.queued++
	return nil
}

func (b *Batch) Execute(ctx context.Context) ([]*adapter.ExecuteResult, error) {
	b.mu.Lock()
	if b.consumed {
		b.mu.Unlock()
		return nil, adapter.NewValidationError("batch", "command group already consumed")
	}
	b.consumed = true
	b.mu.Unlock()

	start := time.Now()
	cmds, err := b.pipe.Exec(ctx)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.Redis, "batch execute",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	elapsed := time.Since(start)
	results := make([]*adapter.ExecuteResult, len(cmds))
	for i, cmd := range cmds {
		affected := int64(1)
		if doCmd, ok := cmd.(*goredis.Cmd); ok {
			if n, ok := doCmd.Val().(int64); ok {
				affected = n
			}
		}
		results[i] = &adapter.ExecuteResult{RowsAffected: affected, Latency: elapsed}
	}
	return results, nil
}

func (b *Batch) Discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return adapter.NewValidationError("batch", "command group already consumed")
	}
	b.consumed = true
	b.pipe.Discard()
	return nil
}
