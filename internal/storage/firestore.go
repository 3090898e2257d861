// Package storage wraps the Firestore collections the pipeline reads and
// writes. All multi-document writes go through the chunked bulk writer; the
// store client is always injected, never held as a package singleton.
package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"github.com/dealgrab/dealgrab-sync/internal/models"
)

const (
	brandsCollection        = "brands"
	dealsCollection         = "deals_fresh"
	categoriesCollection    = "categories"
	searchHistoryCollection = "search_history"
	searchIndexCollection   = "searchIndex"

	homepageCacheCollection   = "homepageCache"
	dealsPageCacheCollection  = "dealsPageCache"
	brandsPageCacheCollection = "brandsPageCache"
	categoriesPageCollection  = "categoriesPageCache"

	// Every singleton cache lives under this document id.
	cacheDocID = "current"
)

type Client struct {
	fs *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{fs: fs}, nil
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// --- Reads ---

// ListBrands loads the full brands collection.
func (c *Client) ListBrands(ctx context.Context) ([]models.Brand, error) {
	return c.queryBrands(ctx, c.fs.Collection(brandsCollection).Query)
}

// ListCategories loads the full categories collection.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	return c.queryCategories(ctx, c.fs.Collection(categoriesCollection).Query)
}

// ListPromotions loads the full promotion set, keyed for reconciliation by
// the caller.
func (c *Client) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	return c.queryPromotions(ctx, c.fs.Collection(dealsCollection).Query)
}

// ListActivePromotions returns every promotion with active status, expired or
// not. Count updaters re-check expiry client-side.
func (c *Client) ListActivePromotions(ctx context.Context) ([]models.Promotion, error) {
	q := c.fs.Collection(dealsCollection).Where("status", "==", models.StatusActive)
	return c.queryPromotions(ctx, q)
}

// ActiveUnexpiredPromotions returns active promotions that have not expired,
// the working set for the search index.
func (c *Client) ActiveUnexpiredPromotions(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	q := c.fs.Collection(dealsCollection).
		Where("status", "==", models.StatusActive).
		Where("expiresAt", ">", now)
	return c.queryPromotions(ctx, q)
}

// ExpiredActivePromotionIDs returns the document ids of promotions still
// marked active whose expiry has passed.
func (c *Client) ExpiredActivePromotionIDs(ctx context.Context, now time.Time) ([]string, error) {
	iter := c.fs.Collection(dealsCollection).
		Where("status", "==", models.StatusActive).
		Where("expiresAt", "<", now).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query expired promotions: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// TopCategories returns the highest-dealCount active categories.
func (c *Client) TopCategories(ctx context.Context, limit int) ([]models.Category, error) {
	q := c.fs.Collection(categoriesCollection).
		Where("status", "==", models.StatusActive).
		Where("dealCount", ">", 0).
		OrderBy("dealCount", firestore.Desc).
		Limit(limit)
	return c.queryCategories(ctx, q)
}

// ActiveCategoriesWithDeals returns every active category that has deals,
// best first.
func (c *Client) ActiveCategoriesWithDeals(ctx context.Context) ([]models.Category, error) {
	q := c.fs.Collection(categoriesCollection).
		Where("status", "==", models.StatusActive).
		Where("dealCount", ">", 0).
		OrderBy("dealCount", firestore.Desc)
	return c.queryCategories(ctx, q)
}

// FeaturedBrands returns active brands that have an uploaded image and at
// least one live deal.
func (c *Client) FeaturedBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	q := c.fs.Collection(brandsCollection).
		Where("status", "==", models.StatusActive).
		Where("brandimg", "!=", "").
		Where("activeDeals", ">", 0).
		OrderBy("brandimg", firestore.Asc).
		OrderBy("activeDeals", firestore.Desc).
		Limit(limit)
	return c.queryBrands(ctx, q)
}

// TopBrands returns the top brands by live deal count.
func (c *Client) TopBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	q := c.fs.Collection(brandsCollection).
		Where("status", "==", models.StatusActive).
		Where("activeDeals", ">", 0).
		OrderBy("activeDeals", firestore.Desc).
		Limit(limit)
	return c.queryBrands(ctx, q)
}

// ActiveBrandsByName returns active brands with at least one live deal, in
// directory order.
func (c *Client) ActiveBrandsByName(ctx context.Context) ([]models.Brand, error) {
	q := c.fs.Collection(brandsCollection).
		Where("status", "==", models.StatusActive).
		Where("activeDeals", ">", 0).
		OrderBy("name", firestore.Asc)
	return c.queryBrands(ctx, q)
}

// TrendingPool returns the nearest-to-expiry, newest active promotions that
// feed the trending shuffle.
func (c *Client) TrendingPool(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error) {
	q := c.fs.Collection(dealsCollection).
		Where("status", "==", models.StatusActive).
		Where("expiresAt", ">", now).
		OrderBy("expiresAt", firestore.Asc).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)
	return c.queryPromotions(ctx, q)
}

// ActiveDeals returns the first page-worth of live deals for the deals page
// cache, in the same order the storefront lists them.
func (c *Client) ActiveDeals(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error) {
	q := c.fs.Collection(dealsCollection).
		Where("status", "==", models.StatusActive).
		Where("expiresAt", ">", now).
		OrderBy("expiresAt", firestore.Asc).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)
	return c.queryPromotions(ctx, q)
}

// CountActiveDeals counts live deals with a server-side aggregation so the
// deals page cache doesn't stream the whole collection.
func (c *Client) CountActiveDeals(ctx context.Context, now time.Time) (int, error) {
	q := c.fs.Collection(dealsCollection).
		Where("status", "==", models.StatusActive).
		Where("expiresAt", ">", now)

	result, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count active deals: %w", err)
	}
	value, ok := result["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation result invalid: 'all' key missing")
	}
	pbValue, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", value)
	}
	return int(pbValue.GetIntegerValue()), nil
}

// PopularSearches returns the most-searched terms, best first.
func (c *Client) PopularSearches(ctx context.Context, limit int) ([]string, error) {
	iter := c.fs.Collection(searchHistoryCollection).
		OrderBy("count", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var terms []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query search history: %w", err)
		}
		var term models.SearchTerm
		if err := doc.DataTo(&term); err != nil {
			return nil, fmt.Errorf("failed to unmarshal search term %s: %w", doc.Ref.ID, err)
		}
		terms = append(terms, term.Term)
	}
	return terms, nil
}

// --- Writes ---

// CreateBrands writes new brand documents with store-generated ids. Individual
// write failures are counted, not fatal.
func (c *Client) CreateBrands(ctx context.Context, brands []models.Brand) (BulkReport, error) {
	col := c.fs.Collection(brandsCollection)
	ops := make([]bulkOp, 0, len(brands))
	for i := range brands {
		brand := brands[i]
		ref := col.NewDoc()
		brand.ID = ref.ID
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Set(ref, brand)
		})
	}
	return c.runChunked(ctx, ops, false), nil
}

// ApplyPromotionDiff stages the reconciler's decision set: creations keyed by
// external promotion id plus deletions of stale documents, committed together
// through the chunked writer.
func (c *Client) ApplyPromotionDiff(ctx context.Context, creates []models.Promotion, deleteIDs []string) (BulkReport, error) {
	col := c.fs.Collection(dealsCollection)
	ops := make([]bulkOp, 0, len(creates)+len(deleteIDs))
	for i := range creates {
		promo := creates[i]
		ref := col.Doc(promo.PromotionID)
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Set(ref, promo)
		})
	}
	for _, id := range deleteIDs {
		ref := col.Doc(id)
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Delete(ref)
		})
	}
	return c.runChunked(ctx, ops, false), nil
}

// DeactivatePromotions flips expired promotions to inactive, recording when
// and why.
func (c *Client) DeactivatePromotions(ctx context.Context, ids []string, now time.Time) (BulkReport, error) {
	col := c.fs.Collection(dealsCollection)
	ops := make([]bulkOp, 0, len(ids))
	for _, id := range ids {
		ref := col.Doc(id)
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Update(ref, []firestore.Update{
				{Path: "status", Value: models.StatusInactive},
				{Path: "deactivatedAt", Value: now},
				{Path: "deactivationReason", Value: "expired"},
				{Path: "previousStatus", Value: models.StatusActive},
			})
		})
	}
	return c.runChunked(ctx, ops, false), nil
}

// UpdateBrandDealCounts writes recomputed activeDeals counts, keyed by brand
// document id. Transient write failures are retried.
func (c *Client) UpdateBrandDealCounts(ctx context.Context, counts map[string]int, now time.Time) (BulkReport, error) {
	return c.updateCounts(ctx, brandsCollection, "activeDeals", counts, now)
}

// UpdateCategoryDealCounts writes recomputed dealCount values, keyed by
// category document id. Transient write failures are retried.
func (c *Client) UpdateCategoryDealCounts(ctx context.Context, counts map[string]int, now time.Time) (BulkReport, error) {
	return c.updateCounts(ctx, categoriesCollection, "dealCount", counts, now)
}

func (c *Client) updateCounts(ctx context.Context, collection, field string, counts map[string]int, now time.Time) (BulkReport, error) {
	col := c.fs.Collection(collection)
	ops := make([]bulkOp, 0, len(counts))
	for docID, count := range counts {
		ref := col.Doc(docID)
		value := count
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Update(ref, []firestore.Update{
				{Path: field, Value: value},
				{Path: "updatedAt", Value: now},
			})
		})
	}
	return c.runChunked(ctx, ops, true), nil
}

// SetHomepageCache overwrites the homepage snapshot in full.
func (c *Client) SetHomepageCache(ctx context.Context, cache models.HomepageCache) error {
	_, err := c.fs.Collection(homepageCacheCollection).Doc(cacheDocID).Set(ctx, cache)
	if err != nil {
		return fmt.Errorf("failed to write homepage cache: %w", err)
	}
	return nil
}

// SetDealsPageCache overwrites the deals page snapshot in full.
func (c *Client) SetDealsPageCache(ctx context.Context, cache models.DealsPageCache) error {
	_, err := c.fs.Collection(dealsPageCacheCollection).Doc(cacheDocID).Set(ctx, cache)
	if err != nil {
		return fmt.Errorf("failed to write deals page cache: %w", err)
	}
	return nil
}

// SetBrandsPageCache overwrites the brands page snapshot in full.
func (c *Client) SetBrandsPageCache(ctx context.Context, cache models.BrandsPageCache) error {
	_, err := c.fs.Collection(brandsPageCacheCollection).Doc(cacheDocID).Set(ctx, cache)
	if err != nil {
		return fmt.Errorf("failed to write brands page cache: %w", err)
	}
	return nil
}

// SetCategoriesPageCache overwrites the categories page snapshot in full.
func (c *Client) SetCategoriesPageCache(ctx context.Context, cache models.CategoriesPageCache) error {
	_, err := c.fs.Collection(categoriesPageCollection).Doc(cacheDocID).Set(ctx, cache)
	if err != nil {
		return fmt.Errorf("failed to write categories page cache: %w", err)
	}
	return nil
}

// WriteSearchIndex replaces the chunked inverted index documents.
func (c *Client) WriteSearchIndex(ctx context.Context, meta models.SearchIndexMetadata, termChunks []models.SearchIndexChunk, dealChunks []models.SearchDealChunk) (BulkReport, error) {
	col := c.fs.Collection(searchIndexCollection)
	ops := make([]bulkOp, 0, 1+len(termChunks)+len(dealChunks))

	metaRef := col.Doc("_metadata")
	ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
		return bw.Set(metaRef, meta)
	})
	for i := range termChunks {
		chunk := termChunks[i]
		ref := col.Doc(fmt.Sprintf("chunk_%d", chunk.ChunkNumber))
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Set(ref, chunk)
		})
	}
	for i := range dealChunks {
		chunk := dealChunks[i]
		ref := col.Doc(fmt.Sprintf("deals_%d", chunk.ChunkNumber))
		ops = append(ops, func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error) {
			return bw.Set(ref, chunk)
		})
	}
	return c.runChunked(ctx, ops, false), nil
}

// --- Query helpers ---

func (c *Client) queryBrands(ctx context.Context, q firestore.Query) ([]models.Brand, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var brands []models.Brand
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query brands: %w", err)
		}
		var brand models.Brand
		if err := doc.DataTo(&brand); err != nil {
			return nil, fmt.Errorf("failed to unmarshal brand %s: %w", doc.Ref.ID, err)
		}
		brand.DocID = doc.Ref.ID
		brands = append(brands, brand)
	}
	return brands, nil
}

func (c *Client) queryCategories(ctx context.Context, q firestore.Query) ([]models.Category, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var categories []models.Category
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query categories: %w", err)
		}
		var category models.Category
		if err := doc.DataTo(&category); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category %s: %w", doc.Ref.ID, err)
		}
		category.DocID = doc.Ref.ID
		categories = append(categories, category)
	}
	return categories, nil
}

func (c *Client) queryPromotions(ctx context.Context, q firestore.Query) ([]models.Promotion, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var promotions []models.Promotion
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query promotions: %w", err)
		}
		var promo models.Promotion
		if err := doc.DataTo(&promo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal promotion %s: %w", doc.Ref.ID, err)
		}
		promo.DocID = doc.Ref.ID
		promotions = append(promotions, promo)
	}
	return promotions, nil
}
