package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	RecordID     string // set when the content is already stored
	Deduplicated bool
	Queued       bool
	HashHex      string
	FileExt      string
	Channel      constants.Channel
	DiscoveredAt time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the service depends on.
type Ingestor interface {
	// IngestPath queues a single file for extraction.
	IngestPath(ctx context.Context, path string, force bool) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden, force bool) ([]IngestionResult, DirStats, error)
}
