package domain

const (
	// MinQuantityPerItem is the smallest quantity a line may carry
	MinQuantityPerItem = 1
	// MaxQuantityPerItem is the largest quantity a line may carry
	MaxQuantityPerItem = 20
)

// discountTier grants percent off to lines with at least minQuantity units.
// Tiers are ordered from the highest threshold down.
type discountTier struct {
	minQuantity int
	percent     int
}

var quantityDiscountTiers = []discountTier{
	{minQuantity: 10, percent: 20},
	{minQuantity: 5, percent: 10},
}

// QuantityDiscountPolicy decides quantity limits and the discount earned per line
type QuantityDiscountPolicy struct{}

// IsAllowed reports whether quantity is within the per-line limits
func (QuantityDiscountPolicy) IsAllowed(quantity int) bool {
	return quantity >= MinQuantityPerItem && quantity <= MaxQuantityPerItem
}

// DiscountPercentFor returns the whole-number discount for a quantity
func (QuantityDiscountPolicy) DiscountPercentFor(quantity int) int {
	for _, tier := range quantityDiscountTiers {
		if quantity >= tier.minQuantity {
			return tier.percent
		}
	}
	return 0
}
