package source

import "context"

// PhotoItem is one photograph offered by a bulk source.
type PhotoItem struct {
	SourceID       string   // Unique ID within the source
	ScientificName string   // Species the photo is filed under
	Tags           []string // Free-form tags
	Format         string   // File extension (jpg, png, gif, webp)
	LocalPath      string   // Local file path, if available
	URL            string   // Remote image URL, if LocalPath is empty
}

// Source defines the interface for bulk photo sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of photo items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []PhotoItem, nextCursor string, err error)
}
