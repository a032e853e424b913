// Package dbcapabilities provides a shared registry describing the declared
// capabilities of the database technologies the core can talk to. The rest of
// the codebase makes decisions based on this uniform metadata (transactions,
// savepoints, prepared statements, paradigms) and never on a backend's name.
//
// Minimal usage example:
//
//	import "github.com/databridge-io/databridge/pkg/dbcapabilities"
//
//	func canSavepoint(db string) bool {
//	    return dbcapabilities.SupportsFeatureString(db, dbcapabilities.FeatureSavepoints)
//	}
//
// The package exposes constants for IDs (e.g., dbcapabilities.PostgreSQL) and
// a registry `All` for advanced consumers.
package dbcapabilities
