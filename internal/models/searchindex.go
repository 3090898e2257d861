package models

import "time"

// SearchIndexMetadata is the _metadata document describing the current index
// build so readers know how many chunks to fetch.
type SearchIndexMetadata struct {
	TotalTerms     int       `firestore:"totalTerms"`
	TotalDeals     int       `firestore:"totalDeals"`
	TermChunkCount int       `firestore:"termChunkCount"`
	DealChunkCount int       `firestore:"dealChunkCount"`
	LastUpdated    time.Time `firestore:"lastUpdated"`
	Version        int       `firestore:"version"`
}

// SearchIndexChunk is one page of the inverted index, mapping a search term to
// the promotion ids containing it.
type SearchIndexChunk struct {
	ChunkNumber int                 `firestore:"chunkNumber"`
	Index       map[string][]string `firestore:"index"`
}

// IndexedDeal is the denormalized deal payload search results render from
// without a second lookup.
type IndexedDeal struct {
	PromotionID string    `firestore:"promotionId"`
	Title       string    `firestore:"title"`
	Brand       string    `firestore:"brand"`
	Category    string    `firestore:"category"`
	Discount    string    `firestore:"discount"`
	Label       string    `firestore:"label"`
	Link        string    `firestore:"link"`
	ExpiresAt   time.Time `firestore:"expiresAt"`
}

// SearchDealChunk is one page of indexed deal payloads.
type SearchDealChunk struct {
	ChunkNumber int           `firestore:"chunkNumber"`
	Deals       []IndexedDeal `firestore:"deals"`
}
