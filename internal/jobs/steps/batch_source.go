package steps

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"
	"github.com/ckguru/orchestrator/internal/data/repos/vcs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// BatchSource joins each repository's CK metric rows with their owning
// commit's Commit Guru process metrics and parent hashes, then yields
// the result in fixed-size pages.
//
// It loads the full repository history into memory once rather than
// paginating at the SQL layer -- CommitMetricsRepo has no cursor-based
// listing, and a repository's CK/Commit Guru history is bounded by the
// repository's own commit count, not by dataset size, so this trades a
// one-time bulk read for simpler, deterministic batching.
type BatchSource struct {
	Metrics      vcs.CommitMetricsRepo
	RepositoryID uuid.UUID
	BatchSize    int

	rows    []map[string]interface{}
	ckIndex map[string]map[string]interface{}
	loaded  bool
}

func (b *BatchSource) EstimateTotalRows(ctx context.Context) (int, error) {
	if err := b.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return len(b.rows), nil
}

// LookupCK finds the CK metric row for (commitHash, file, class).
func (b *BatchSource) LookupCK(commitHash, file, class string) (map[string]interface{}, bool) {
	row, ok := b.ckIndex[ckKey(commitHash, file, class)]
	return row, ok
}

func ckKey(commitHash, file, class string) string {
	return commitHash + "|" + file + "|" + class
}

func (b *BatchSource) ensureLoaded(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	ckRows, err := b.Metrics.ListCKMetrics(dbc, b.RepositoryID)
	if err != nil {
		return err
	}
	guruRows, err := b.Metrics.ListCommitGuruMetrics(dbc, b.RepositoryID)
	if err != nil {
		return err
	}
	guruByHash := make(map[string]*domainvcs.CommitGuruMetric, len(guruRows))
	for _, g := range guruRows {
		guruByHash[g.CommitHash] = g
	}

	rows := make([]map[string]interface{}, 0, len(ckRows))
	index := make(map[string]map[string]interface{}, len(ckRows))
	for _, ck := range ckRows {
		row := decodeMetrics(ck.Metrics)
		row["repository_id"] = ck.RepositoryID.String()
		row["commit_hash"] = ck.CommitHash
		row["file"] = ck.FilePath
		row["class"] = ck.ClassName
		row["class_name"] = ck.ClassName

		if g, ok := guruByHash[ck.CommitHash]; ok {
			for k, v := range decodeMetrics(g.Metrics) {
				row[k] = v
			}
			var parents []string
			_ = json.Unmarshal(g.ParentHashes, &parents)
			row["parent_hashes"] = parents
		}

		rows = append(rows, row)
		index[ckKey(ck.CommitHash, ck.FilePath, ck.ClassName)] = row
	}

	b.rows = rows
	b.ckIndex = index
	b.loaded = true
	return nil
}

// StreamBatches calls fn once per page of rows (BatchSize rows, or
// defaultBatchSize if unset), stopping at the first error fn returns.
func (b *BatchSource) StreamBatches(ctx context.Context, fn func(batch []map[string]interface{}) error) error {
	if err := b.ensureLoaded(ctx); err != nil {
		return err
	}
	size := b.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	for start := 0; start < len(b.rows); start += size {
		end := start + size
		if end > len(b.rows) {
			end = len(b.rows)
		}
		if err := fn(b.rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func decodeMetrics(raw []byte) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
