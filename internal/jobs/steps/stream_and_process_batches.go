package steps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// errCanceled is an internal sentinel StreamBatches' callback returns
// to stop paging early; it is never surfaced as a Step failure -- the
// caller (the Dataset-Generation Handler) distinguishes "stopped early
// because of cancellation" from "stopped early because the frame went
// empty" by checking its own cancellation source after Run returns.
var errCanceled = errors.New("canceled during batch processing")

// StreamAndProcessBatches is the orchestrating Step that pages through
// a repository's CK/Commit Guru history and runs the per-batch
// cleaning/enrichment sub-steps against each page. It never touches
// pc.Frame directly -- its batches accumulate in pc.Scratch["batches"]
// for ProcessGlobally's CombineBatches sub-step to concatenate.
//
// Canceled, when set, is polled at every batch boundary -- a true
// result stops paging and sets pc.Sentinel rather than failing the
// Step, so the Strategy winds down the same clean way an empty frame
// does.
type StreamAndProcessBatches struct {
	Source   *BatchSource
	Registry *cleaning.Registry
	Canceled func() bool
}

func (s *StreamAndProcessBatches) Name() string { return "StreamAndProcessBatches" }

func (s *StreamAndProcessBatches) batchSteps() []engine.Step {
	return []engine.Step{
		&ApplyFileFilters{},
		&CalculateCommitStats{},
		&GetParentCKMetrics{Source: s.Source},
		&CalculateDeltaMetrics{},
		&BatchCleaningRules{Registry: s.Registry},
		&DropMissingParents{},
	}
}

func (s *StreamAndProcessBatches) Run(ctx context.Context, pc *engine.Context, _ engine.Deps) error {
	totalRows, err := s.Source.EstimateTotalRows(ctx)
	if err != nil {
		return fmt.Errorf("estimate total rows: %w", err)
	}

	var batches []*dataframe.DataFrame
	batchNum := 0

	err = s.Source.StreamBatches(ctx, func(raw []map[string]interface{}) error {
		if s.Canceled != nil && s.Canceled() {
			return errCanceled
		}
		batchNum++
		batchDF := framesFromRows(batchColumnOrder(raw), raw)

		batchPC := &engine.Context{Job: pc.Job, Config: pc.Config, Frame: batchDF}
		for _, sub := range s.batchSteps() {
			if batchPC.Frame == nil || batchPC.Frame.NRows() == 0 {
				break
			}
			if err := sub.Run(ctx, batchPC, engine.Deps{}); err != nil {
				return fmt.Errorf("sub-step %s failed on batch %d: %w", sub.Name(), batchNum, err)
			}
		}
		pc.Warnings = append(pc.Warnings, batchPC.Warnings...)

		if batchPC.Frame != nil && batchPC.Frame.NRows() > 0 {
			batches = append(batches, batchPC.Frame)
		}

		if totalRows > 0 && pc.Progress != nil {
			estimatedProcessed := batchNum * s.batchSize()
			frac := math.Min(1.0, float64(estimatedProcessed)/float64(totalRows))
			pct := 5 + int(45*frac)
			pc.Progress(s.Name(), pct, fmt.Sprintf("processing batch %d", batchNum))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errCanceled) {
			pc.Sentinel = true
			pc.AddWarning("dataset generation canceled during batch processing")
			return nil
		}
		return err
	}

	if pc.Scratch == nil {
		pc.Scratch = map[string]any{}
	}
	pc.Scratch["batches"] = batches
	return nil
}

func (s *StreamAndProcessBatches) batchSize() int {
	if s.Source.BatchSize > 0 {
		return s.Source.BatchSize
	}
	return defaultBatchSize
}

// batchColumnOrder returns the union of every row's keys, sorted for
// determinism -- a raw batch's rows are plain Go maps, which don't
// preserve insertion order, so a stable output requires an explicit
// sort rather than relying on first-seen iteration order.
func batchColumnOrder(rows []map[string]interface{}) []string {
	seen := map[string]bool{}
	order := make([]string, 0, 16)
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	sort.Strings(order)
	return order
}
