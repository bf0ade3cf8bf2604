package artifacts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

// ArtifactURI identifies a stored object as "<scheme>://<bucket>/<key>",
// e.g. "gs://nb-datasets/datasets/dataset_42.parquet". The scheme is
// informational only -- the category implied by the key's leading
// path segment ("datasets/" vs "models/") picks the bucket.
func BuildArtifactURI(category BucketCategory, bucketName, key string) string {
	key = strings.TrimLeft(key, "/")
	return fmt.Sprintf("gs://%s/%s", bucketName, key)
}

// ParseArtifactURI splits a "gs://bucket/key" URI into its bucket and
// key. Returns an error if the URI doesn't carry the gs:// scheme --
// PE artifact URIs never use anything else.
func ParseArtifactURI(uri string) (bucket, key string, err error) {
	const prefix = "gs://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("artifact uri %q missing gs:// scheme", uri)
	}
	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("artifact uri %q malformed", uri)
	}
	return parts[0], parts[1], nil
}

// DatasetKey returns the canonical object key for a generated
// dataset's main artifact. datasetID is the Dataset row's
// uuid.String().
func DatasetKey(datasetID string) string {
	return fmt.Sprintf("datasets/dataset_%s.parquet", datasetID)
}

// DatasetBackgroundKey returns the key for a dataset's background
// sample, written alongside the main artifact by the WriteOutput step.
func DatasetBackgroundKey(datasetID string) string {
	return fmt.Sprintf("datasets/dataset_%s_background.parquet", datasetID)
}

// ModelKey returns the canonical object key for a trained model
// artifact at a given (name, version) pair.
func ModelKey(name string, version int) string {
	return fmt.Sprintf("models/%s/v%d/model.joblib", name, version)
}

// ClearAndWrite deletes any pre-existing object at key, then writes
// body to it, so a retried write never appends to or mixes with a
// prior partial write.
func ClearAndWrite(dbc dbctx.Context, bs BucketService, category BucketCategory, key string, body io.Reader) error {
	// Object not existing yet is the common case on first write, so
	// the delete's error is intentionally discarded here.
	_ = bs.DeleteFile(dbc, category, key)
	return bs.UploadFile(dbc, category, key, body)
}

// CleanupURIs best-effort deletes every object named by uris, used
// when a WriteOutput failure or job cancellation needs to leave no
// partial artifacts behind. Errors are swallowed -- cleanup on an
// already-failed path must not mask the original error.
func CleanupURIs(ctx context.Context, bs BucketService, uris ...string) {
	for _, uri := range uris {
		bucket, key, err := ParseArtifactURI(uri)
		if err != nil || bucket == "" {
			continue
		}
		category := BucketCategoryDataset
		if strings.HasPrefix(key, "models/") {
			category = BucketCategoryModel
		}
		_ = bs.DeleteFile(dbctx.Context{Ctx: ctx}, category, key)
	}
}
