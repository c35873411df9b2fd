// Package extract reads the local activity stores of developer tools and
// recovers time-ordered raw activity records from them. Extractors never
// fail a run: a missing source yields an empty result with a warning, and
// per-record or per-file problems are logged and skipped.
package extract

import (
	"context"

	"worklens/internal/activity"
)

// Extractor reads one source root and emits its raw activity records.
// The returned error is reserved for programmer mistakes (nil config and the
// like); anything wrong with the source data itself is downgraded to a
// warning and a partial or empty result.
type Extractor interface {
	Name() string
	Extract(ctx context.Context) ([]activity.Record, error)
}
