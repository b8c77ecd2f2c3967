// Package sizing derives the target_chars / num_quotes / num_stories sizing
// triple a Generation is seeded with from its requested duration and
// language (§4.3.1 step 1), reading reading-speed constants from
// pkg/config.CPMConfig.
package sizing

const (
	minTargetChars  = 4000
	defaultDuration = 120

	itemsPerHour = 30
	minNumItems  = 4
)

// Estimate is the sizing triple derived for a single Generation.
type Estimate struct {
	TargetChars int
	NumQuotes   int
	NumStories  int
}

// EstimateFor computes target_chars (duration_minutes * cpm, floored at
// minTargetChars) and the quote/story split (roughly half each of a
// duration-proportional item count, floored at minNumItems).
func EstimateFor(durationMinutes int, cpm int) Estimate {
	if durationMinutes <= 0 {
		durationMinutes = defaultDuration
	}

	targetChars := durationMinutes * cpm
	if targetChars < minTargetChars {
		targetChars = minTargetChars
	}

	numItems := int(float64(itemsPerHour) * (float64(durationMinutes) / 60.0))
	if numItems < minNumItems {
		numItems = minNumItems
	}

	numQuotes := (numItems + 1) / 2
	numStories := numItems - numQuotes

	return Estimate{
		TargetChars: targetChars,
		NumQuotes:   numQuotes,
		NumStories:  numStories,
	}
}
