// Package extract derives display fields (discount text, redemption code,
// card label) from raw promotion text. Everything here is pure string work;
// the only state is the injected random source used by the label fallback.
package extract

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/dealgrab/dealgrab-sync/internal/models"
)

var (
	percentRegex  = regexp.MustCompile(`(\d+)%`)
	currencyRegex = regexp.MustCompile(`(?i)[£€$](\d+)|USD (\d+)`)
	codeRegex     = regexp.MustCompile(`(?i)\b(?:code|coupon|voucher):?\s*["']?([A-Z0-9_-]+)["']?`)
)

// Discount derives display text from the combined title and description.
// Percentage always wins over a currency amount, then "free shipping",
// then empty.
func Discount(title, description string) string {
	text := title + " " + description

	if m := percentRegex.FindStringSubmatch(text); m != nil {
		return m[1] + "% OFF"
	}

	if m := currencyRegex.FindStringSubmatch(text); m != nil {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		// First rune, not byte: £ and € are multibyte. A leading "U" from a
		// USD match becomes the dollar sign.
		symbol := strings.Replace(string([]rune(m[0])[0]), "U", "$", 1)
		return symbol + value + " OFF"
	}

	if strings.Contains(strings.ToLower(text), "free shipping") {
		return "Free Shipping"
	}
	return ""
}

// Code returns the promotion's redemption code: an explicit voucher code wins,
// otherwise the first "code:/coupon:/voucher:" pattern in the title, then the
// description. Empty when nothing matches.
func Code(voucherCode, title, description string) string {
	if voucherCode != "" {
		return voucherCode
	}
	if m := codeRegex.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := codeRegex.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}

// Labeler classifies promotions into card labels. The random source only
// feeds the final fallback; every rule above it is deterministic.
type Labeler struct {
	rnd *rand.Rand
}

func NewLabeler(rnd *rand.Rand) Labeler {
	return Labeler{rnd: rnd}
}

// Label picks the card label for a promotion. Voucher-typed promotions with an
// extractable code always get GetCode. Unclassifiable promotions fall back to
// a 50/50 pick between GetDeals and GetReward; that randomness is inherited
// product behavior, kept for display variety.
func (l Labeler) Label(promoType, voucherCode, title, description string) string {
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)

	if strings.EqualFold(promoType, "voucher") && Code(voucherCode, title, description) != "" {
		return models.LabelGetCode
	}
	if containsAny(titleLower, descLower, "reward", "cashback") {
		return models.LabelGetReward
	}
	if containsAny(titleLower, descLower, "free shipping") {
		return models.LabelGetDeals
	}

	if l.rnd.Float64() < 0.5 {
		return models.LabelGetDeals
	}
	return models.LabelGetReward
}

func containsAny(title, description string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(title, n) || strings.Contains(description, n) {
			return true
		}
	}
	return false
}
