package environment

import (
	"strings"
)

// DeriveClothing produces a layering recommendation from the snapshot. It is
// pure: the same snapshot always yields the same advice.
func DeriveClothing(s Snapshot) string {
	var base, mid, outer, footwear string
	var accessories []string

	switch {
	case s.Temperature < 5:
		base = "thermal base layer"
		mid = "thick sweater"
		outer = "insulated winter coat"
		footwear = "insulated boots"
		accessories = append(accessories, "gloves", "warm hat", "scarf")
	case s.Temperature < 10:
		base = "long-sleeve shirt"
		mid = "sweater"
		outer = "warm coat"
		footwear = "closed shoes"
		accessories = append(accessories, "light gloves")
	case s.Temperature < 12:
		base = "long-sleeve shirt"
		mid = "light sweater"
		outer = "jacket"
		footwear = "closed shoes"
	case s.Temperature < 15:
		base = "long-sleeve shirt"
		mid = "light cardigan"
		outer = "light jacket"
		footwear = "comfortable shoes"
	case s.Temperature < 18:
		base = "t-shirt"
		mid = "light layer"
		outer = "light jacket for the evening"
		footwear = "comfortable shoes"
	case s.Temperature < 20:
		base = "t-shirt"
		outer = "light overshirt"
		footwear = "comfortable shoes"
	default:
		base = "t-shirt"
		footwear = "breathable shoes"
		accessories = append(accessories, "sunglasses")
	}

	if s.PrecipitationMm > 2 {
		outer = "waterproof outer layer"
		if s.Temperature < 12 {
			outer = "waterproof coat"
		}
		footwear = "waterproof shoes"
		accessories = append(accessories, "umbrella")
	}

	if s.WindSpeedKmh > 25 && s.PrecipitationMm <= 2 {
		outer = "windbreaker"
	}

	parts := []string{base}
	if mid != "" {
		parts = append(parts, mid)
	}
	if outer != "" {
		parts = append(parts, outer)
	}
	desc := strings.Join(parts, ", ") + "; " + footwear
	if len(accessories) > 0 {
		desc += "; bring " + strings.Join(accessories, ", ")
	}
	return desc
}
