// Package feed talks to the affiliate network API that supplies programme
// (brand) and promotion records.
package feed

import (
	"time"

	"github.com/tidwall/gjson"
)

// Programme is a merchant programme as returned by the programmes endpoint.
type Programme struct {
	ID          string
	Name        string
	Description string
	LogoURL     string
	Status      string

	// Raw keeps the full feed payload for storage alongside the parsed fields.
	Raw map[string]any
}

// Advertiser identifies the merchant behind a promotion.
type Advertiser struct {
	ID      string
	Name    string
	LogoURL string
	Joined  bool
}

// Voucher carries an explicit redemption code when the feed provides one.
type Voucher struct {
	Code string
}

// Promotion is a single offer record from the promotions endpoint. StartDate
// and EndDate are zero when the feed omits them; the reconciler applies
// defaults at write time.
type Promotion struct {
	PromotionID string
	Title       string
	Description string
	Type        string
	Voucher     Voucher
	Advertiser  Advertiser
	URLTracking string
	Terms       string
	Status      string
	StartDate   time.Time
	EndDate     time.Time

	Raw map[string]any
}

// Feed date formats observed in the wild. RFC3339 from newer endpoints, the
// space-separated form from the promotions endpoint.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFeedTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func rawMap(elem gjson.Result) map[string]any {
	if m, ok := elem.Value().(map[string]any); ok {
		return m
	}
	return nil
}

func parseProgramme(elem gjson.Result) Programme {
	return Programme{
		ID:          elem.Get("id").String(),
		Name:        elem.Get("name").String(),
		Description: elem.Get("description").String(),
		LogoURL:     elem.Get("logoUrl").String(),
		Status:      elem.Get("status").String(),
		Raw:         rawMap(elem),
	}
}

func parsePromotion(elem gjson.Result) Promotion {
	return Promotion{
		PromotionID: elem.Get("promotionId").String(),
		Title:       elem.Get("title").String(),
		Description: elem.Get("description").String(),
		Type:        elem.Get("type").String(),
		Voucher:     Voucher{Code: elem.Get("voucher.code").String()},
		Advertiser: Advertiser{
			ID:      elem.Get("advertiser.id").String(),
			Name:    elem.Get("advertiser.name").String(),
			LogoURL: elem.Get("advertiser.logoUrl").String(),
			Joined:  elem.Get("advertiser.joined").Bool(),
		},
		URLTracking: elem.Get("urlTracking").String(),
		Terms:       elem.Get("terms").String(),
		Status:      elem.Get("status").String(),
		StartDate:   parseFeedTime(elem.Get("startDate").String()),
		EndDate:     parseFeedTime(elem.Get("endDate").String()),
		Raw:         rawMap(elem),
	}
}
