package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/models"
)

type fakeStore struct {
	categories []models.Category
	featured   []models.Brand
	footer     []models.Brand
	allBrands  []models.Brand
	pool       []models.Promotion
	deals      []models.Promotion
	dealCount  int
	searches   []string

	homepage       *models.HomepageCache
	dealsPage      *models.DealsPageCache
	brandsPage     *models.BrandsPageCache
	categoriesPage *models.CategoriesPageCache
}

func (s *fakeStore) TopCategories(ctx context.Context, limit int) ([]models.Category, error) {
	return s.categories, nil
}

func (s *fakeStore) ActiveCategoriesWithDeals(ctx context.Context) ([]models.Category, error) {
	return s.categories, nil
}

func (s *fakeStore) FeaturedBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	return s.featured, nil
}

func (s *fakeStore) TopBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	return s.footer, nil
}

func (s *fakeStore) ActiveBrandsByName(ctx context.Context) ([]models.Brand, error) {
	return s.allBrands, nil
}

func (s *fakeStore) TrendingPool(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error) {
	if len(s.pool) > limit {
		return s.pool[:limit], nil
	}
	return s.pool, nil
}

func (s *fakeStore) ActiveDeals(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error) {
	return s.deals, nil
}

func (s *fakeStore) CountActiveDeals(ctx context.Context, now time.Time) (int, error) {
	return s.dealCount, nil
}

func (s *fakeStore) PopularSearches(ctx context.Context, limit int) ([]string, error) {
	return s.searches, nil
}

func (s *fakeStore) SetHomepageCache(ctx context.Context, cache models.HomepageCache) error {
	s.homepage = &cache
	return nil
}

func (s *fakeStore) SetDealsPageCache(ctx context.Context, cache models.DealsPageCache) error {
	s.dealsPage = &cache
	return nil
}

func (s *fakeStore) SetBrandsPageCache(ctx context.Context, cache models.BrandsPageCache) error {
	s.brandsPage = &cache
	return nil
}

func (s *fakeStore) SetCategoriesPageCache(ctx context.Context, cache models.CategoriesPageCache) error {
	s.categoriesPage = &cache
	return nil
}

func newTestBuilder(store *fakeStore, seed int64) *Builder {
	b := NewBuilder(store, rand.New(rand.NewSource(seed)), slog.New(slog.DiscardHandler))
	b.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return b
}

// dealsForBrands builds one deal per entry, titled after its index.
func dealsForBrands(brands ...string) []models.Promotion {
	deals := make([]models.Promotion, len(brands))
	for i, b := range brands {
		deals[i] = models.Promotion{
			PromotionID: fmt.Sprintf("p%d", i),
			Title:       fmt.Sprintf("deal %d", i),
			Brand:       b,
		}
	}
	return deals
}

func TestRefreshHomepageTrimsPoolBeforeShuffling(t *testing.T) {
	brands := make([]string, 30)
	for i := range brands {
		brands[i] = fmt.Sprintf("brand-%d", i%10)
	}
	store := &fakeStore{pool: dealsForBrands(brands...)}

	if err := newTestBuilder(store, 1).RefreshHomepage(context.Background()); err != nil {
		t.Fatalf("RefreshHomepage failed: %v", err)
	}
	if store.homepage == nil {
		t.Fatal("homepage cache was not written")
	}
	if len(store.homepage.TrendingDeals) != 20 {
		t.Fatalf("trending deals = %d, want 20", len(store.homepage.TrendingDeals))
	}

	// Only the first 20 pool entries may appear; the tail 10 are reserve.
	allowed := make(map[string]bool)
	for _, d := range store.pool[:20] {
		allowed[d.PromotionID] = true
	}
	for _, d := range store.homepage.TrendingDeals {
		if !allowed[d.PromotionID] {
			t.Errorf("deal %s is outside the first 20 pool entries", d.PromotionID)
		}
	}
}

func TestRefreshHomepageWritesEmptyArrays(t *testing.T) {
	store := &fakeStore{}

	if err := newTestBuilder(store, 1).RefreshHomepage(context.Background()); err != nil {
		t.Fatalf("RefreshHomepage failed: %v", err)
	}
	hp := store.homepage
	if hp == nil {
		t.Fatal("homepage cache was not written")
	}
	if hp.Categories == nil || hp.FeaturedBrands == nil || hp.TrendingDeals == nil ||
		hp.PopularSearches == nil || hp.FooterBrands == nil {
		t.Errorf("cache fields must be empty slices, not nil: %+v", hp)
	}
	if hp.Version != 1 {
		t.Errorf("version = %d, want 1", hp.Version)
	}
	if hp.LastUpdated.IsZero() {
		t.Error("lastUpdated not set")
	}
}

func TestShuffleAvoidsConsecutiveBrandsWhenPossible(t *testing.T) {
	// Two brands, evenly split: a perfect interleave exists, so no seed may
	// produce adjacent same-brand deals.
	deals := dealsForBrands("a", "a", "a", "a", "a", "b", "b", "b", "b", "b")

	for seed := int64(0); seed < 50; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		got := shuffleAvoidConsecutiveBrands(deals, rnd)
		if len(got) != len(deals) {
			t.Fatalf("seed %d: shuffle changed length: %d", seed, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Brand == got[i-1].Brand {
				t.Errorf("seed %d: consecutive brand %q at %d", seed, got[i].Brand, i)
			}
		}
	}
}

func TestShufflePreservesDealSet(t *testing.T) {
	// The shuffle must be a permutation: every input deal exactly once, no
	// drops, no duplicates, whatever the seed.
	deals := dealsForBrands("a", "b", "a", "c", "b", "b", "d", "a", "c", "e")
	wantCounts := make(map[string]int)
	for _, d := range deals {
		wantCounts[d.PromotionID]++
	}

	for seed := int64(0); seed < 50; seed++ {
		got := shuffleAvoidConsecutiveBrands(deals, rand.New(rand.NewSource(seed)))
		gotCounts := make(map[string]int)
		for _, d := range got {
			gotCounts[d.PromotionID]++
		}
		if !reflect.DeepEqual(gotCounts, wantCounts) {
			t.Fatalf("seed %d: output multiset %v, want %v", seed, gotCounts, wantCounts)
		}
	}
}

func TestShuffleKeepsAllDealsWhenDiversityImpossible(t *testing.T) {
	deals := dealsForBrands("solo", "solo", "solo")
	got := shuffleAvoidConsecutiveBrands(deals, rand.New(rand.NewSource(7)))
	if len(got) != 3 {
		t.Fatalf("single-brand input must survive whole, got %d deals", len(got))
	}
}

func TestRefreshDealsPageSnapshot(t *testing.T) {
	store := &fakeStore{
		deals:      dealsForBrands("a", "b"),
		dealCount:  412,
		categories: []models.Category{{Name: "Fashion"}},
		footer:     []models.Brand{{Name: "a"}, {Name: "b"}},
	}

	if err := newTestBuilder(store, 1).RefreshDealsPage(context.Background()); err != nil {
		t.Fatalf("RefreshDealsPage failed: %v", err)
	}
	dp := store.dealsPage
	if dp == nil {
		t.Fatal("deals page cache was not written")
	}
	if dp.TotalCount != 412 {
		t.Errorf("totalCount = %d, want 412", dp.TotalCount)
	}
	if len(dp.InitialDeals) != 2 || len(dp.Brands) != 2 || len(dp.Categories) != 1 {
		t.Errorf("snapshot incomplete: %+v", dp)
	}
}

func TestRefreshCategoriesPageUsesDistinctBrands(t *testing.T) {
	store := &fakeStore{
		pool: dealsForBrands("a", "a", "b", "c", "b", "d"),
	}

	if err := newTestBuilder(store, 1).RefreshCategoriesPage(context.Background()); err != nil {
		t.Fatalf("RefreshCategoriesPage failed: %v", err)
	}
	cp := store.categoriesPage
	if cp == nil {
		t.Fatal("categories page cache was not written")
	}
	want := []string{"p0", "p2", "p3", "p5"}
	if len(cp.TrendingDeals) != len(want) {
		t.Fatalf("trending deals = %d, want %d", len(cp.TrendingDeals), len(want))
	}
	for i, d := range cp.TrendingDeals {
		if d.PromotionID != want[i] {
			t.Errorf("trending[%d] = %s, want %s (first deal per brand, in order)", i, d.PromotionID, want[i])
		}
	}
}

func TestDistinctBrandDealsHonorsLimit(t *testing.T) {
	deals := dealsForBrands("a", "b", "c", "d", "e")
	got := distinctBrandDeals(deals, 3)
	if len(got) != 3 {
		t.Fatalf("got %d deals, want 3", len(got))
	}
}
