package domain

import (
	"fmt"
	"strconv"
)

const (
	MaxItemsDescription = 500
	MinSpaces           = 1
	MaxSpaces           = 3
)

var unitPrices = map[Tier]int{
	TierEarlyBird: 20,
	TierRegular:   30,
	TierDayOf:     40,
}

// UnitPrice falls back to the regular price for a missing or unknown tier.
func UnitPrice(t Tier) int {
	if p, ok := unitPrices[t]; ok {
		return p
	}
	return unitPrices[TierRegular]
}

// ParseSpaces reads the space count, defaulting to 1 when absent, zero or non-numeric.
func ParseSpaces(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n == 0 {
		return MinSpaces
	}
	return n
}

// Price is the amount due in whole currency units.
func Price(t Tier, spaces int) int {
	return UnitPrice(t) * spaces
}

func SpacesLabel(n int) string {
	switch n {
	case 1:
		return "1 Space (10x12 ft)"
	case 2:
		return "2 Spaces (20x12 ft)"
	case 3:
		return "3 Spaces (30x12 ft)"
	}
	return strconv.Itoa(n)
}

func FormatAmount(amount int) string {
	return fmt.Sprintf("$%d", amount)
}

// Quote is the price computed once at submission time.
type Quote struct {
	Tier      Tier `json:"tier"`
	Spaces    int  `json:"spaces"`
	UnitPrice int  `json:"unit_price"`
	Amount    int  `json:"amount"`
}

func QuoteFor(t Tier, rawSpaces string) Quote {
	spaces := ParseSpaces(rawSpaces)
	return Quote{
		Tier:      t,
		Spaces:    spaces,
		UnitPrice: UnitPrice(t),
		Amount:    Price(t, spaces),
	}
}
