package cache

import (
	"math/rand"

	"github.com/dealgrab/dealgrab-sync/internal/models"
)

// shuffleAvoidConsecutiveBrands randomizes deal order while keeping deals from
// the same brand apart where possible. After a plain shuffle it greedily
// rebuilds the list, preferring the next deal whose brand differs from the one
// just placed. When only same-brand deals remain they are emitted as-is, so a
// single-brand list still comes back whole.
func shuffleAvoidConsecutiveBrands(deals []models.Promotion, rnd *rand.Rand) []models.Promotion {
	shuffled := make([]models.Promotion, len(deals))
	copy(shuffled, deals)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	result := make([]models.Promotion, 0, len(shuffled))
	lastBrand := ""
	for len(shuffled) > 0 {
		pick := 0
		if shuffled[pick].Brand == lastBrand {
			for i := 1; i < len(shuffled); i++ {
				if shuffled[i].Brand != lastBrand {
					pick = i
					break
				}
			}
		}
		deal := shuffled[pick]
		result = append(result, deal)
		lastBrand = deal.Brand
		shuffled = append(shuffled[:pick], shuffled[pick+1:]...)
	}
	return result
}

// distinctBrandDeals returns up to limit deals keeping only the first deal
// seen per brand, preserving input order.
func distinctBrandDeals(deals []models.Promotion, limit int) []models.Promotion {
	seen := make(map[string]bool)
	result := make([]models.Promotion, 0, limit)
	for _, d := range deals {
		if seen[d.Brand] {
			continue
		}
		seen[d.Brand] = true
		result = append(result, d)
		if len(result) == limit {
			break
		}
	}
	return result
}
