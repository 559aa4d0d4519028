package index

import (
	"time"

	"github.com/orneryd/vecdex/pkg/hnsw"
	"github.com/orneryd/vecdex/pkg/vecmath"
)

// Kind selects the index backend. Flat (brute-force linear scan) is
// deliberately not implemented by this module — callers who want it can
// linear-scan their own vector slice; HNSW is the only backend New accepts.
type Kind uint8

const (
	Flat Kind = 0
	HNSW Kind = 3
)

// Metric re-exports vecmath's distance kernel selector at the façade
// boundary so callers never need to import pkg/vecmath directly.
type Metric = vecmath.Metric

const (
	L2Squared = vecmath.L2Squared
	Cosine    = vecmath.Cosine
	Dot       = vecmath.Dot
)

// MatchResult is one search hit.
type MatchResult = hnsw.MatchResult

// UpdateMode is a bitmask selecting which fields of a Context apply to an
// UpdateContext call; unselected fields are left untouched.
type UpdateMode uint8

const (
	SetEfConstruct UpdateMode = 1 << iota
	SetEfSearch
	SetM0
)

// Context carries the subset of HNSW runtime parameters UpdateContext can
// adjust after an index has been built.
type Context struct {
	EfConstruct int
	EfSearch    int
	M0          int
}

// ImportMode controls collision handling when Import merges another file's
// vectors into an existing index.
type ImportMode uint8

const (
	Overwrite ImportMode = iota
	IgnoreSilent
	IgnoreVerbose
)

// Config carries optional overrides for New; a nil Config uses
// hnsw.DefaultConfig's values. Seed of 0 seeds the index's RNG from the
// current time.
type Config struct {
	M0          int
	EfConstruct int
	EfSearch    int
	Seed        int64
}

// opStats accumulates elapsed-time statistics for one operation kind.
type opStats struct {
	Count int64
	Total time.Duration
	Last  time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s *opStats) record(d time.Duration) {
	s.Count++
	s.Total += d
	s.Last = d
	if s.Min == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

// Stats is a snapshot of per-operation timing counters, recorded only on
// successful operations.
type Stats struct {
	Insert opStats
	Search opStats
	Delete opStats
	Dump   opStats
	Load   opStats
}
