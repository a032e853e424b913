package engine

import "sync/atomic"

// Process-wide operation counters, readable without locking.
var (
	queriesTotal      atomic.Int64
	commandsTotal     atomic.Int64
	batchesTotal      atomic.Int64
	transactionsTotal atomic.Int64
)

// Counters is a point-in-time snapshot of the operation counters.
type Counters struct {
	Queries      int64 `json:"queries"`
	Commands     int64 `json:"commands"`
	Batches      int64 `json:"batches"`
	Transactions int64 `json:"transactions"`
}

// Snapshot returns the current counter values.
func Snapshot() Counters {
	return Counters{
		Queries:      queriesTotal.Load(),
		Commands:     commandsTotal.Load(),
		Batches:      batchesTotal.Load(),
		Transactions: transactionsTotal.Load(),
	}
}
