package commitanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAnalyzer is the default Analyzer: it POSTs (git_url, commit_hash)
// to a configured source-analysis service and decodes its JSON response
// into a Result, using a stdlib net/http client with an env-tunable
// timeout -- no HTTP client library beyond the standard one is wired
// in, so this stays on net/http rather than importing one.
type HTTPAnalyzer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPAnalyzer(baseURL string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &HTTPAnalyzer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	GitURL     string `json:"git_url"`
	CommitHash string `json:"commit_hash"`
}

// wireResult mirrors Result field-for-field but in wire (json-tagged)
// shape, kept separate so Result itself stays free of wire concerns.
type wireResult struct {
	ParentHashes      []string                 `json:"parent_hashes"`
	AuthorDate        time.Time                `json:"author_date"`
	IsBugFix          bool                     `json:"is_bug_fix"`
	CommitGuruMetrics map[string]any           `json:"commit_guru_metrics"`
	Classes           []wireClassMetrics       `json:"classes"`
	FileDiffs         []FileDiff               `json:"file_diffs"`
}

type wireClassMetrics struct {
	FilePath  string         `json:"file_path"`
	ClassName string         `json:"class_name"`
	Metrics   map[string]any `json:"metrics"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, gitURL, commitHash string) (*Result, error) {
	if a.BaseURL == "" {
		return nil, fmt.Errorf("commitanalysis: no analysis service configured")
	}
	body, err := json.Marshal(analyzeRequest{GitURL: gitURL, CommitHash: commitHash})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, string(b))
	}

	var wire wireResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}

	classes := make([]ClassMetrics, len(wire.Classes))
	for i, c := range wire.Classes {
		classes[i] = ClassMetrics{FilePath: c.FilePath, ClassName: c.ClassName, Metrics: c.Metrics}
	}
	return &Result{
		ParentHashes:      wire.ParentHashes,
		AuthorDate:        wire.AuthorDate,
		IsBugFix:          wire.IsBugFix,
		CommitGuruMetrics: wire.CommitGuruMetrics,
		Classes:           classes,
		FileDiffs:         wire.FileDiffs,
	}, nil
}
