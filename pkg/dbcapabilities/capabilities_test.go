package dbcapabilities

import (
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DatabaseID
		ok       bool
	}{
		{name: "canonical id", input: "postgres", expected: PostgreSQL, ok: true},
		{name: "alias", input: "postgresql", expected: PostgreSQL, ok: true},
		{name: "product name", input: "PostgreSQL", expected: PostgreSQL, ok: true},
		{name: "mixed case alias", input: "Mongo", expected: MongoDB, ok: true},
		{name: "surrounding whitespace", input: "  redis ", expected: Redis, ok: true},
		{name: "unknown", input: "sybase", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseID(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseID(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && id != tt.expected {
				t.Errorf("ParseID(%q) = %s, want %s", tt.input, id, tt.expected)
			}
		})
	}
}

func TestFeatureSet(t *testing.T) {
	fs := NewFeatureSet(FeatureTransactions, FeatureSavepoints)

	if !fs.Has(FeatureTransactions) {
		t.Error("expected transactions in set")
	}
	if fs.Has(FeatureDocumentStore) {
		t.Error("did not expect document store in set")
	}

	extended := fs.Add(FeatureReplication)
	if !extended.Has(FeatureReplication) {
		t.Error("expected replication after Add")
	}
	if fs.Has(FeatureReplication) {
		t.Error("Add must not mutate the original set")
	}
	if got := len(extended.List()); got != 3 {
		t.Errorf("List() returned %d features, want 3", got)
	}
}

func TestRegistryFeatures(t *testing.T) {
	tests := []struct {
		id      DatabaseID
		feature Feature
		want    bool
	}{
		{PostgreSQL, FeatureSavepoints, true},
		{PostgreSQL, FeatureDocumentStore, false},
		{MongoDB, FeatureTransactions, true},
		{MongoDB, FeatureSavepoints, false},
		{Redis, FeatureTransactions, false},
		{Redis, FeatureBatchedCommands, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.id)+"/"+string(tt.feature), func(t *testing.T) {
			if got := SupportsFeature(tt.id, tt.feature); got != tt.want {
				t.Errorf("SupportsFeature(%s, %s) = %v, want %v", tt.id, tt.feature, got, tt.want)
			}
		})
	}
}

func TestMustGet(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustGet on unknown id should panic")
		}
	}()
	MustGet(DatabaseID("nope"))
}

func TestSupportsFeatureString(t *testing.T) {
	if !SupportsFeatureString("postgresql", FeaturePreparedStatements) {
		t.Error("alias lookup should resolve features")
	}
	if SupportsFeatureString("unknown", FeatureTransactions) {
		t.Error("unknown name should report no features")
	}
}

func TestSupportsParadigm(t *testing.T) {
	if !SupportsParadigm(Redis, ParadigmKeyValue) {
		t.Error("redis should be key-value")
	}
	if SupportsParadigm(Redis, ParadigmRelational) {
		t.Error("redis is not relational")
	}
}
