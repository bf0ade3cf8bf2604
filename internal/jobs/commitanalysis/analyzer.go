// Package commitanalysis defines the external-collaborator contract
// the Commit-Ingestion Handler drives: the source-code-analysis tools
// that turn one commit into Commit Guru process metrics, CK static
// metrics, and per-file diffs are explicitly out of scope (their output
// is taken as a given), so this package specifies only the boundary --
// what the Handler needs, not how it's actually produced.
package commitanalysis

import (
	"context"
	"time"
)

// Analyzer computes everything a commit_ingestion job persists for one
// commit. A real implementation shells out to (or calls an API
// fronting) the actual CK/Commit Guru tooling; this module only
// consumes its result shape.
type Analyzer interface {
	Analyze(ctx context.Context, gitURL, commitHash string) (*Result, error)
}

// Result bundles one commit's full ingestion payload.
type Result struct {
	ParentHashes []string
	AuthorDate   time.Time
	IsBugFix     bool

	// CommitGuruMetrics is the commit-level process-metric set (la, ld,
	// lt, ndev, age, nuc, exp, rexp, sexp, ...), keyed by metric name.
	CommitGuruMetrics map[string]any

	// Classes is one CK static-metric row per (file, class) touched by
	// the commit.
	Classes []ClassMetrics

	// FileDiffs is the per-file diff payload CommitDetails persists
	// verbatim once ingestion completes.
	FileDiffs []FileDiff
}

type ClassMetrics struct {
	FilePath  string
	ClassName string
	Metrics   map[string]any
}

type FileDiff struct {
	Path      string `json:"path"`
	ChangeType string `json:"change_type"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}
