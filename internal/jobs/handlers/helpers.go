// Package handlers is the per-kind Job Handler family: Training,
// HP-Search, Inference, Explanation-Orchestration, Explanation-Worker,
// Dataset-Generation and Commit-Ingestion, each implementing
// runtime.Handler. Every Handler follows the same six-step template:
// validate, resolve strategy, execute,
// commit terminal transition, emit downstream events -- step 1 (load &
// CAS to running) already happened in
// internal/temporalx/jobrun.Activities.Run before a Handler's Run is
// ever called.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"gorm.io/datatypes"

	"github.com/ckguru/orchestrator/internal/artifacts"
	"github.com/ckguru/orchestrator/internal/jobs/jobserr"
	"github.com/ckguru/orchestrator/internal/jobs/xaitype"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

const maxStatusMessageLen = 500

// truncate caps an error message at the wire-level limit for a job's
// status_message column.
func truncate(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > maxStatusMessageLen {
		return s[:maxStatusMessageLen]
	}
	return s
}

// decodeFrame parses a CSV-encoded artifact (the wire format
// WriteOutput/encodeFrame in internal/jobs/steps writes) back into a
// DataFrame.
func decodeFrame(ctx context.Context, body []byte) (*dataframe.DataFrame, error) {
	df, err := imports.ImportFromCSV(ctx, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode csv artifact: %w", err)
	}
	return df, nil
}

func encodeFrame(df *dataframe.DataFrame) ([]byte, error) {
	var buf bytes.Buffer
	if err := exports.ExportToCSV(context.Background(), &buf, df); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// downloadFrame downloads and decodes the artifact at uri, dispatching
// on the bucket category the URI's key prefix implies.
func downloadFrame(ctx context.Context, bs artifacts.BucketService, uri string) (*dataframe.DataFrame, error) {
	_, key, err := artifacts.ParseArtifactURI(uri)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	category := artifacts.BucketCategoryDataset
	if len(key) >= 7 && key[:7] == "models/" {
		category = artifacts.BucketCategoryModel
	}
	rc, err := bs.DownloadFile(ctx, category, key)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	df, err := decodeFrame(ctx, buf.Bytes())
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	return df, nil
}

func frameColumn(df *dataframe.DataFrame, name string) dataframe.Series {
	for _, s := range df.Series {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func hasFrameColumn(df *dataframe.DataFrame, name string) bool {
	return frameColumn(df, name) != nil
}

// numericCell best-effort coerces a cell to float64, treating bool as
// 0/1 and a missing/unparseable value as 0.
func numericCell(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		var f float64
		if _, err := fmt.Sscanf(x, "%g", &f); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// frameToXY builds the (X, y) matrix pair used to fit/evaluate a
// model: feature columns coerced to float64 with missing values
// zeroed, target rows with a nil value dropped rather than coerced,
// bool targets mapped 0/1, everything else numerically parsed or the
// whole frame rejected as non-numeric.
func frameToXY(df *dataframe.DataFrame, featureCols []string, targetCol string) ([][]float64, []int, error) {
	if df == nil || df.NRows() == 0 {
		return nil, nil, jobserr.Validation("dataset frame is empty")
	}
	for _, c := range append(append([]string{}, featureCols...), targetCol) {
		if !hasFrameColumn(df, c) {
			return nil, nil, jobserr.Validation("missing column %q", c)
		}
	}

	targetSeries := frameColumn(df, targetCol)
	n := df.NRows()
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		tv := targetSeries.Value(i)
		if tv == nil {
			continue
		}
		var label int
		switch v := tv.(type) {
		case bool:
			if v {
				label = 1
			}
		case int:
			label = v
		case int64:
			label = int(v)
		case float64:
			label = int(v)
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
				return nil, nil, jobserr.Validation("target %q not numeric/bool: %v", targetCol, err)
			}
			label = int(f)
		default:
			return nil, nil, jobserr.Validation("target %q has unsupported type %T", targetCol, tv)
		}

		row := make([]float64, len(featureCols))
		for j, c := range featureCols {
			row[j] = numericCell(frameColumn(df, c).Value(i))
		}
		X = append(X, row)
		y = append(y, label)
	}
	if len(y) == 0 {
		return nil, nil, jobserr.Validation("target %q empty after dropping missing rows", targetCol)
	}
	return X, y, nil
}

// frameToX is frameToXY without a target column, used for inference/
// XAI where there is no label to align against.
func frameToX(df *dataframe.DataFrame, featureCols []string) ([][]float64, error) {
	if df == nil || df.NRows() == 0 {
		return nil, jobserr.Validation("features frame is empty")
	}
	for _, c := range featureCols {
		if !hasFrameColumn(df, c) {
			return nil, jobserr.Validation("missing feature column %q", c)
		}
	}
	n := df.NRows()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(featureCols))
		for j, c := range featureCols {
			row[j] = numericCell(frameColumn(df, c).Value(i))
		}
		X[i] = row
	}
	return X, nil
}

// downloadArtifactBytes downloads the raw bytes of a model artifact at
// uri, shared by the Inference and Explanation Worker Handlers (both
// unmarshal a modeltype.Model from the same artifact).
func downloadArtifactBytes(ctx context.Context, bs artifacts.BucketService, uri string) ([]byte, error) {
	_, key, err := artifacts.ParseArtifactURI(uri)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	r, err := bs.DownloadFile(ctx, artifacts.BucketCategoryModel, key)
	if err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, jobserr.Artifact(uri, err)
	}
	return buf.Bytes(), nil
}

// rowIdentifiers extracts the (file, class_name) identifier pair off
// each row of a commit's joined feature rows, the non-dataframe analog
// of frameIdentifiers used when Handlers work with
// loadCommitFeatureRows' []map[string]interface{} shape instead of a
// decoded dataset frame.
func rowIdentifiers(rows []map[string]interface{}) []xaitype.Identifier {
	out := make([]xaitype.Identifier, len(rows))
	for i, row := range rows {
		file, _ := row["file"].(string)
		className, _ := row["class_name"].(string)
		out[i] = xaitype.Identifier{File: file, ClassName: className}
	}
	return out
}

func frameIdentifiers(df *dataframe.DataFrame) []xaitype.Identifier {
	n := df.NRows()
	out := make([]xaitype.Identifier, n)
	fileCol := frameColumn(df, "file")
	classCol := frameColumn(df, "class_name")
	for i := 0; i < n; i++ {
		var id xaitype.Identifier
		if fileCol != nil {
			id.File = fmt.Sprintf("%v", fileCol.Value(i))
		}
		if classCol != nil {
			id.ClassName = fmt.Sprintf("%v", classCol.Value(i))
		}
		out[i] = id
	}
	return out
}

// sampleRows picks up to n rows uniformly at random without
// replacement, used by the background-data fallback when no persisted
// background sample is available.
func sampleRows(X [][]float64, n int, seed int64) [][]float64 {
	if n >= len(X) {
		return X
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(X))[:n]
	out := make([][]float64, n)
	for i, idx := range perm {
		out[i] = X[idx]
	}
	return out
}

const backgroundSampleSeed = 42

func dbctxFor(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }

func jsonDecode(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func marshalJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
