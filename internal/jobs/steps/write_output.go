// Package steps is the Pipeline Engine's step catalogue: one file per
// Step in the dataset-generation pipeline.
package steps

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// backgroundSampleSeed fixes the background sample's row selection so
// repeated runs over the same frame reproduce the same sample.
const backgroundSampleSeed = 42

const (
	backgroundSampleSize    = 500
	minRowsForBackgroundOut = 50
)

// WriteOutput is the terminal Step of the dataset-generation Strategy:
// it writes the final frame to its canonical artifact URI, a 500-row
// background sample alongside it when the frame is large enough, and
// records both URIs plus the final feature-column list in the Step's
// output so the dataset-generation Job Handler can persist them onto
// the Dataset row. Writes clear-then-write and skips background
// sampling below minRowsForBackgroundOut rows.
type WriteOutput struct {
	Bucket    artifacts.BucketService
	DatasetID uuid.UUID
	TargetCol string
}

func (s *WriteOutput) Name() string { return "WriteOutput" }

// Result carries the two artifact URIs and the observed feature
// columns back to the calling Handler via Deps["write_output_result"].
type WriteOutputResult struct {
	OutputURI      string
	BackgroundURI  string
	RowsWritten    int
	FeatureColumns []string
}

func (s *WriteOutput) Run(ctx context.Context, pc *engine.Context, deps engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return fmt.Errorf("final frame is empty, cannot write output")
	}

	outKey := artifacts.DatasetKey(s.DatasetID.String())
	bgKey := artifacts.DatasetBackgroundKey(s.DatasetID.String())

	bucketName, err := s.Bucket.BucketName(artifacts.BucketCategoryDataset)
	if err != nil {
		return fmt.Errorf("resolve dataset bucket: %w", err)
	}
	outURI := artifacts.BuildArtifactURI(artifacts.BucketCategoryDataset, bucketName, outKey)
	bgURI := artifacts.BuildArtifactURI(artifacts.BucketCategoryDataset, bucketName, bgKey)

	dbc := dbctx.Context{Ctx: ctx}
	body, err := encodeFrame(pc.Frame)
	if err != nil {
		return fmt.Errorf("encode final frame: %w", err)
	}
	if err := artifacts.ClearAndWrite(dbc, s.Bucket, artifacts.BucketCategoryDataset, outKey, bytes.NewReader(body)); err != nil {
		artifacts.CleanupURIs(ctx, s.Bucket, outURI, bgURI)
		return fmt.Errorf("write main dataset: %w", err)
	}

	result := &WriteOutputResult{
		OutputURI:      outURI,
		RowsWritten:    pc.Frame.NRows(),
		FeatureColumns: featureColumns(pc.Frame, s.TargetCol),
	}

	if result.RowsWritten >= minRowsForBackgroundOut {
		sample := sampleFrame(pc.Frame, backgroundSampleSize)
		sampleBody, eErr := encodeFrame(sample)
		if eErr != nil {
			pc.AddWarning(fmt.Sprintf("background sample skipped: %v", eErr))
		} else if wErr := artifacts.ClearAndWrite(dbc, s.Bucket, artifacts.BucketCategoryDataset, bgKey, bytes.NewReader(sampleBody)); wErr != nil {
			// The main artifact already succeeded; a failed background
			// sample is a warning, not a pipeline failure.
			pc.AddWarning(fmt.Sprintf("background sample write failed: %v", wErr))
		} else {
			result.BackgroundURI = bgURI
		}
	} else {
		pc.AddWarning(fmt.Sprintf("dataset too small (%d rows) for background sampling (min %d)", result.RowsWritten, minRowsForBackgroundOut))
	}

	deps["write_output_result"] = result
	return nil
}

func encodeFrame(df *dataframe.DataFrame) ([]byte, error) {
	var buf bytes.Buffer
	if err := exports.ExportToCSV(context.Background(), &buf, df); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sampleFrame picks n rows uniformly at random (seeded, so repeated
// runs over the same frame reproduce the same sample) without
// replacement.
func sampleFrame(df *dataframe.DataFrame, n int) *dataframe.DataFrame {
	total := df.NRows()
	if n > total {
		n = total
	}
	rng := rand.New(rand.NewSource(backgroundSampleSeed))
	picked := rng.Perm(total)[:n]
	sort.Ints(picked)

	names := df.Names()
	rows := make([]map[string]interface{}, n)
	for i, rowIdx := range picked {
		rows[i] = rowAt(df, names, rowIdx)
	}
	return framesFromRows(names, rows)
}

func featureColumns(df *dataframe.DataFrame, targetCol string) []string {
	names := df.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == targetCol {
			continue
		}
		out = append(out, n)
	}
	return out
}
