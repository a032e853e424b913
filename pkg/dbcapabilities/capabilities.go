package dbcapabilities

import "strings"

// DatabaseID is the canonical identifier for a database technology supported
// by the core. Use these constants to look up capability information.
type DatabaseID string

const (
	// Relational SQL
	PostgreSQL  DatabaseID = "postgres"
	MySQL       DatabaseID = "mysql"
	MariaDB     DatabaseID = "mariadb"
	CockroachDB DatabaseID = "cockroach"

	// NoSQL / Other paradigms
	MongoDB DatabaseID = "mongodb"
	Redis   DatabaseID = "redis"
)

// DataParadigm enumerates the primary data storage paradigms a database supports.
type DataParadigm string

const (
	ParadigmRelational DataParadigm = "relational" // Tables, schemas, SQL
	ParadigmDocument   DataParadigm = "document"   // Collections, documents
	ParadigmKeyValue   DataParadigm = "keyvalue"   // Key/Value
)

// Feature is a set-valued capability flag. Each engine instance exposes its
// supported subset; orchestration consults the set and fails fast with an
// unsupported-operation error rather than issuing a backend call that would
// error non-deterministically.
type Feature string

const (
	FeatureTransactions        Feature = "transactions"
	FeatureSavepoints          Feature = "savepoints"
	FeaturePreparedStatements  Feature = "prepared_statements"
	FeatureReplication         Feature = "replication"
	FeatureDocumentStore       Feature = "document_store"
	FeatureKeyValueStore       Feature = "key_value_store"
	FeatureSchemaIntrospection Feature = "schema_introspection"
	FeatureBatchedCommands     Feature = "batched_commands"
)

// FeatureSet is the declared subset of optional behaviors a backend supports.
type FeatureSet map[Feature]struct{}

// NewFeatureSet builds a set from the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	fs := make(FeatureSet, len(features))
	for _, f := range features {
		fs[f] = struct{}{}
	}
	return fs
}

// Has reports whether the feature is in the set.
func (fs FeatureSet) Has(f Feature) bool {
	_, ok := fs[f]
	return ok
}

// Add returns a copy of the set with the feature added.
func (fs FeatureSet) Add(f Feature) FeatureSet {
	out := make(FeatureSet, len(fs)+1)
	for k := range fs {
		out[k] = struct{}{}
	}
	out[f] = struct{}{}
	return out
}

// List returns the features in the set in unspecified order.
func (fs FeatureSet) List() []Feature {
	out := make([]Feature, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	return out
}

// Capability describes what a database supports in a way the core can consume
// uniformly.
type Capability struct {
	// Human-friendly vendor or product name, e.g., "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see DatabaseID constants).
	ID DatabaseID `json:"id"`

	// Declared optional behaviors of this database technology.
	Features FeatureSet `json:"features"`

	// Primary data storage paradigms supported.
	Paradigms []DataParadigm `json:"paradigms"`

	// Default wire port for the technology.
	DefaultPort int `json:"defaultPort"`

	// Common aliases (directory names, drivers, env labels) that map to this database.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database ID.
var All = map[DatabaseID]Capability{
	PostgreSQL: {
		Name: "PostgreSQL",
		ID:   PostgreSQL,
		Features: NewFeatureSet(
			FeatureTransactions,
			FeatureSavepoints,
			FeaturePreparedStatements,
			FeatureReplication,
			FeatureSchemaIntrospection,
		),
		Paradigms:   []DataParadigm{ParadigmRelational},
		DefaultPort: 5432,
		Aliases:     []string{"postgresql", "pgsql"},
	},
	MySQL: {
		Name: "MySQL",
		ID:   MySQL,
		Features: NewFeatureSet(
			FeatureTransactions,
			FeatureSavepoints,
			FeaturePreparedStatements,
			FeatureReplication,
			FeatureSchemaIntrospection,
		),
		Paradigms:   []DataParadigm{ParadigmRelational},
		DefaultPort: 3306,
	},
	MariaDB: {
		Name: "MariaDB",
		ID:   MariaDB,
		Features: NewFeatureSet(
			FeatureTransactions,
			FeatureSavepoints,
			FeaturePreparedStatements,
			FeatureReplication,
			FeatureSchemaIntrospection,
		),
		Paradigms:   []DataParadigm{ParadigmRelational},
		DefaultPort: 3306,
	},
	CockroachDB: {
		Name: "CockroachDB",
		ID:   CockroachDB,
		Features: NewFeatureSet(
			FeatureTransactions,
			FeatureSavepoints,
			FeaturePreparedStatements,
			FeatureSchemaIntrospection,
		),
		Paradigms:   []DataParadigm{ParadigmRelational},
		DefaultPort: 26257,
		Aliases:     []string{"cockroachdb", "crdb"},
	},
	MongoDB: {
		Name: "MongoDB",
		ID:   MongoDB,
		Features: NewFeatureSet(
			FeatureTransactions,
			FeatureDocumentStore,
			FeatureReplication,
			FeatureSchemaIntrospection,
		),
		Paradigms:   []DataParadigm{ParadigmDocument},
		DefaultPort: 27017,
		Aliases:     []string{"mongo"},
	},
	Redis: {
		Name: "Redis",
		ID:   Redis,
		Features: NewFeatureSet(
			FeatureKeyValueStore,
			FeatureBatchedCommands,
			FeatureReplication,
		),
		Paradigms:   []DataParadigm{ParadigmKeyValue},
		DefaultPort: 6379,
		Aliases:     []string{"valkey"},
	},
}

// nameToID resolves canonical IDs, aliases, and product names to a DatabaseID.
var nameToID = map[string]DatabaseID{}

func init() {
	for id, cap := range All {
		nameToID[strings.ToLower(string(id))] = id
		nameToID[strings.ToLower(cap.Name)] = id
		for _, a := range cap.Aliases {
			if a == "" {
				continue
			}
			nameToID[strings.ToLower(a)] = id
		}
	}
}

// ParseID attempts to resolve an arbitrary database name (canonical id, alias,
// or product name) to a canonical DatabaseID. Returns false if unknown.
func ParseID(name string) (DatabaseID, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	id, ok := nameToID[n]
	return id, ok
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id DatabaseID) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id DatabaseID) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return c
}

// GetByName returns the Capability by looking up using a free-form name (id or alias).
func GetByName(name string) (Capability, bool) {
	if id, ok := ParseID(name); ok {
		return Get(id)
	}
	return Capability{}, false
}

// IDs returns the list of all known database IDs.
func IDs() []DatabaseID {
	out := make([]DatabaseID, 0, len(All))
	for id := range All {
		out = append(out, id)
	}
	return out
}

// SupportsFeature reports whether the database technology declares a feature.
func SupportsFeature(id DatabaseID, f Feature) bool {
	c, ok := Get(id)
	return ok && c.Features.Has(f)
}

// SupportsFeatureString reports feature support using a free-form name (id or alias).
func SupportsFeatureString(name string, f Feature) bool {
	if id, ok := ParseID(name); ok {
		return SupportsFeature(id, f)
	}
	return false
}

// SupportsParadigm reports whether the database supports a given data paradigm.
func SupportsParadigm(id DatabaseID, p DataParadigm) bool {
	c, ok := Get(id)
	if !ok {
		return false
	}
	for _, dp := range c.Paradigms {
		if dp == p {
			return true
		}
	}
	return false
}
