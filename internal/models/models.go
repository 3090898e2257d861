package models

import (
	"errors"
	"time"
)

// ErrMalformedFeed is returned when the affiliate API responds with a body we
// cannot trust (non-array data). No partial promotion set is written in that case.
var ErrMalformedFeed = errors.New("malformed feed response")

// Promotion status values. Promotions only ever move active -> inactive.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Promotion labels shown on deal cards.
const (
	LabelGetCode   = "GetCode"
	LabelGetDeals  = "GetDeals"
	LabelGetReward = "GetReward"
)

// Brand represents an affiliate programme/merchant. Identity for reconciliation
// is the external ProgrammeID, never the name.
type Brand struct {
	DocID       string         `firestore:"-"`
	ID          string         `firestore:"id"`
	ProgrammeID string         `firestore:"programmeId" validate:"required"`
	Name        string         `firestore:"name" validate:"required"`
	Description string         `firestore:"description"`
	Logo        string         `firestore:"logo"`
	BrandImg    string         `firestore:"brandimg,omitempty"` // admin-uploaded image, drives featured placement
	Status      string         `firestore:"status"`
	ActiveDeals int            `firestore:"activeDeals"`
	Source      string         `firestore:"source"`
	RawData     map[string]any `firestore:"rawData,omitempty"`
	CreatedAt   time.Time      `firestore:"createdAt,omitempty"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

// PrimarySector reports the sector the feed attached to this brand, if any.
func (b Brand) PrimarySector() string {
	if s, ok := b.RawData["primarySector"].(string); ok && s != "" {
		return s
	}
	return ""
}

// Promotion is a single offer/voucher instance. The document key in the
// deals collection is the external PromotionID.
type Promotion struct {
	DocID              string         `firestore:"-"`
	PromotionID        string         `firestore:"promotionId" validate:"required"`
	Title              string         `firestore:"title"`
	Description        string         `firestore:"description"`
	Brand              string         `firestore:"brand" validate:"required"`
	BrandDetails       Brand          `firestore:"brandDetails"`
	Category           string         `firestore:"category" validate:"required"`
	Discount           string         `firestore:"discount"`
	Code               string         `firestore:"code"`
	Label              string         `firestore:"label" validate:"oneof=GetCode GetDeals GetReward"`
	Link               string         `firestore:"link"`
	Terms              string         `firestore:"terms"`
	Status             string         `firestore:"status" validate:"oneof=active inactive"`
	StartsAt           time.Time      `firestore:"startsAt" validate:"required"`
	ExpiresAt          time.Time      `firestore:"expiresAt" validate:"required"`
	Source             string         `firestore:"source"`
	Joined             bool           `firestore:"joined"`
	ManuallyAdded      bool           `firestore:"manuallyAdded"`
	RawData            map[string]any `firestore:"rawData,omitempty"`
	CreatedAt          time.Time      `firestore:"createdAt"`
	UpdatedAt          time.Time      `firestore:"updatedAt"`
	DeactivatedAt      time.Time      `firestore:"deactivatedAt,omitempty"`
	DeactivationReason string         `firestore:"deactivationReason,omitempty"`
	PreviousStatus     string         `firestore:"previousStatus,omitempty"`
}

// Category groups promotions for browsing. DealCount is a derived aggregate
// owned by the count updater; everything else is admin-managed.
type Category struct {
	DocID       string    `firestore:"-"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Icon        string    `firestore:"icon,omitempty"`
	Status      string    `firestore:"status"`
	DealCount   int       `firestore:"dealCount"`
	Order       int       `firestore:"order,omitempty"`
	UpdatedAt   time.Time `firestore:"updatedAt,omitempty"`
}

// SearchTerm is a recorded storefront search with a running count. The pipeline
// only reads these; the UI increments them.
type SearchTerm struct {
	Term  string `firestore:"term"`
	Count int    `firestore:"count"`
}

// HomepageCache is the singleton landing-page snapshot. It is fully overwritten
// on every cache-builder run, never patched.
type HomepageCache struct {
	Categories      []Category  `firestore:"categories"`
	FeaturedBrands  []Brand     `firestore:"featuredBrands"`
	TrendingDeals   []Promotion `firestore:"trendingDeals"`
	PopularSearches []string    `firestore:"popularSearches"`
	FooterBrands    []Brand     `firestore:"footerBrands"`
	LastUpdated     time.Time   `firestore:"lastUpdated"`
	Version         int         `firestore:"version"`
}

// DealsPageCache pre-computes the deals directory: the first pages of active
// deals plus the metadata the page chrome needs.
type DealsPageCache struct {
	InitialDeals []Promotion `firestore:"initialDeals"`
	TotalCount   int         `firestore:"totalCount"`
	Categories   []Category  `firestore:"categories"`
	Brands       []Brand     `firestore:"brands"`
	LastUpdated  time.Time   `firestore:"lastUpdated"`
	Version      int         `firestore:"version"`
}

// BrandsPageCache pre-computes the brand directory listing.
type BrandsPageCache struct {
	AllBrands    []Brand    `firestore:"allBrands"`
	FooterBrands []Brand    `firestore:"footerBrands"`
	Categories   []Category `firestore:"categories"`
	LastUpdated  time.Time  `firestore:"lastUpdated"`
	Version      int        `firestore:"version"`
}

// CategoriesPageCache pre-computes the category directory page.
type CategoriesPageCache struct {
	Categories     []Category  `firestore:"categories"`
	FeaturedBrands []Brand     `firestore:"featuredBrands"`
	FooterBrands   []Brand     `firestore:"footerBrands"`
	TrendingDeals  []Promotion `firestore:"trendingDeals"`
	LastUpdated    time.Time   `firestore:"lastUpdated"`
	Version        int         `firestore:"version"`
}
