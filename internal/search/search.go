// Package search builds the chunked inverted index the storefront's
// client-side search reads. The index is rebuilt from scratch on every run.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dealgrab/dealgrab-sync/internal/models"
	"github.com/dealgrab/dealgrab-sync/internal/storage"
)

const (
	termsPerChunk = 500
	dealsPerChunk = 100
	maxTermLength = 50
	minTermLength = 3
)

// Common words that match everything and help nobody.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "is": true, "it": true,
	"as": true, "by": true,
}

// Store is the storage surface the indexer needs.
type Store interface {
	ActiveUnexpiredPromotions(ctx context.Context, now time.Time) ([]models.Promotion, error)
	WriteSearchIndex(ctx context.Context, meta models.SearchIndexMetadata, termChunks []models.SearchIndexChunk, dealChunks []models.SearchDealChunk) (storage.BulkReport, error)
}

// Indexer builds the search index from the live deal set.
type Indexer struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewIndexer(store Store, log *slog.Logger) *Indexer {
	return &Indexer{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Build tokenizes every live deal into an inverted index and writes it out in
// chunks small enough for single-document reads.
func (ix *Indexer) Build(ctx context.Context) error {
	now := ix.now()
	deals, err := ix.store.ActiveUnexpiredPromotions(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list deals for indexing: %w", err)
	}

	index := make(map[string][]string)
	indexed := make([]models.IndexedDeal, 0, len(deals))
	for _, d := range deals {
		for _, term := range termsFor(d) {
			index[term] = append(index[term], d.PromotionID)
		}
		indexed = append(indexed, models.IndexedDeal{
			PromotionID: d.PromotionID,
			Title:       d.Title,
			Brand:       d.Brand,
			Category:    d.Category,
			Discount:    d.Discount,
			Label:       d.Label,
			Link:        d.Link,
			ExpiresAt:   d.ExpiresAt,
		})
	}

	termChunks := chunkTerms(index)
	dealChunks := chunkDeals(indexed)
	meta := models.SearchIndexMetadata{
		TotalTerms:     len(index),
		TotalDeals:     len(indexed),
		TermChunkCount: len(termChunks),
		DealChunkCount: len(dealChunks),
		LastUpdated:    now,
		Version:        1,
	}

	report, err := ix.store.WriteSearchIndex(ctx, meta, termChunks, dealChunks)
	if err != nil {
		return fmt.Errorf("failed to write search index: %w", err)
	}
	if report.Failed > 0 {
		ix.log.Warn("Some index writes failed", "failed", report.Failed)
	}

	ix.log.Info("Search index built",
		"deals", len(indexed),
		"terms", len(index),
		"termChunks", len(termChunks),
		"dealChunks", len(dealChunks))
	return nil
}

// termsFor returns the deduplicated search terms for one deal: tokens from its
// title and description plus exact-match brand and category keys.
func termsFor(d models.Promotion) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}

	for _, token := range tokenize(d.Title) {
		add(token)
	}
	for _, token := range tokenize(d.Description) {
		add(token)
	}
	if d.Brand != "" {
		add("brand:" + strings.ToLower(d.Brand))
	}
	if d.Category != "" {
		add("category:" + strings.ToLower(d.Category))
	}
	return terms
}

// tokenize lowercases text, splits on anything that isn't a letter or digit
// and drops terms too short, too long or too common to be useful.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, f := range fields {
		if len(f) < minTermLength || len(f) > maxTermLength {
			continue
		}
		if stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// chunkTerms splits the inverted index into fixed-size chunks. Terms are
// sorted first so rebuilds are stable.
func chunkTerms(index map[string][]string) []models.SearchIndexChunk {
	terms := make([]string, 0, len(index))
	for term := range index {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var chunks []models.SearchIndexChunk
	for start := 0; start < len(terms); start += termsPerChunk {
		end := start + termsPerChunk
		if end > len(terms) {
			end = len(terms)
		}
		chunk := models.SearchIndexChunk{
			ChunkNumber: len(chunks),
			Index:       make(map[string][]string, end-start),
		}
		for _, term := range terms[start:end] {
			chunk.Index[term] = index[term]
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func chunkDeals(deals []models.IndexedDeal) []models.SearchDealChunk {
	var chunks []models.SearchDealChunk
	for start := 0; start < len(deals); start += dealsPerChunk {
		end := start + dealsPerChunk
		if end > len(deals) {
			end = len(deals)
		}
		chunks = append(chunks, models.SearchDealChunk{
			ChunkNumber: len(chunks),
			Deals:       deals[start:end],
		})
	}
	return chunks
}

var _ Store = (*storage.Client)(nil)
