package recommend

import (
	"fmt"
	"strings"
)

// CuratedOutfit is the final recommendation assembled from validated
// candidates. AverageScore averages only the included items.
type CuratedOutfit struct {
	Items        []Candidate
	IsComplete   bool
	Message      string
	AverageScore float64
}

const minTraditionalScore = 0.5
const minCompleteOutfitScore = 0.6

var traditionalIntentKeywords = []string{
	"traditional", "indian", "ethnic", "kurta", "saree", "lehenga", "sherwani",
}

var compositeSlots = []string{"shirt", "pants", "shoes"}

// CurateOutfit builds an outfit from ranked candidates. Single-piece outfits
// win over composites: a confident traditional piece or one-piece garment is
// returned alone, otherwise the shirt/pants/shoes slots are filled from the
// candidate pool in order, each pick removing the item from the pool.
func CurateOutfit(query string, candidates []Candidate) CuratedOutfit {
	if len(candidates) == 0 {
		return CuratedOutfit{
			Message: fmt.Sprintf("Sorry, I couldn't find anything in your wardrobe matching %q. Try adding more items or rephrasing your request.", query),
		}
	}

	if hasTraditionalIntent(query) {
		for _, candidate := range candidates {
			if candidate.Item.Category.IsTraditional() && candidate.Score >= minTraditionalScore {
				return singleItemOutfit(candidate, "Here's a traditional piece that works as a complete outfit.")
			}
		}
	}

	for _, candidate := range candidates {
		if candidate.Item.Category.IsCompleteOutfit() && candidate.Score >= minCompleteOutfitScore {
			return singleItemOutfit(candidate, "This one-piece works as a complete outfit on its own.")
		}
	}

	pool := make([]Candidate, len(candidates))
	copy(pool, candidates)

	var picked []Candidate
	var missing []string
	for _, slot := range compositeSlots {
		index := findSlot(pool, slot)
		if index < 0 {
			missing = append(missing, slot)
			continue
		}
		picked = append(picked, pool[index])
		pool = append(pool[:index], pool[index+1:]...)
	}

	if len(missing) == 0 {
		return CuratedOutfit{
			Items:        picked,
			IsComplete:   true,
			Message:      "Here's a complete outfit put together from your wardrobe.",
			AverageScore: averageScore(picked),
		}
	}
	if len(picked) > 0 {
		return CuratedOutfit{
			Items:        picked,
			Message:      fmt.Sprintf("Here's a partial outfit. You're missing: %s.", strings.Join(missing, ", ")),
			AverageScore: averageScore(picked),
		}
	}
	return CuratedOutfit{
		Message: fmt.Sprintf("Sorry, I couldn't put together an outfit for %q from your wardrobe.", query),
	}
}

func hasTraditionalIntent(query string) bool {
	lowered := strings.ToLower(query)
	for _, keyword := range traditionalIntentKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// findSlot returns the index of the first candidate whose category contains
// the slot name, or -1.
func findSlot(pool []Candidate, slot string) int {
	for i, candidate := range pool {
		if strings.Contains(strings.ToLower(string(candidate.Item.Category)), slot) {
			return i
		}
	}
	return -1
}

func singleItemOutfit(candidate Candidate, message string) CuratedOutfit {
	return CuratedOutfit{
		Items:        []Candidate{candidate},
		IsComplete:   true,
		Message:      message,
		AverageScore: candidate.Score,
	}
}

func averageScore(items []Candidate) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Score
	}
	return sum / float64(len(items))
}
