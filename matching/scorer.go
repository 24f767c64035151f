package matching

import (
	"math"
	"strconv"
	"strings"

	"propmarket/identity"
	"propmarket/models"
)

// Candidate is the listing side of a score, flattened to what the criteria read
type Candidate struct {
	Location      string
	Price         float64
	Features      []string
	OwnershipType string
	Floor         string
	Text          string // title, description and features, for keyword search
}

// CandidateFromListing flattens a listing for scoring
func CandidateFromListing(l *models.PropertyListing) Candidate {
	floor := ""
	if l.Attributes.FloorNumber != nil {
		floor = strconv.Itoa(*l.Attributes.FloorNumber)
	}

	features := make([]string, 0, len(l.Features)+len(l.Attributes.Facilities))
	features = append(features, l.Features...)
	features = append(features, l.Attributes.Facilities...)

	return Candidate{
		Location:      l.Location(),
		Price:         l.Price,
		Features:      features,
		OwnershipType: l.OwnershipType,
		Floor:         floor,
		Text:          strings.Join(append([]string{l.Title, l.Description}, features...), " "),
	}
}

// Result is the outcome of scoring one candidate
type Result struct {
	Percent   int                      `json:"percent"`
	Enabled   int                      `json:"enabled"`
	Passed    int                      `json:"passed"`
	Breakdown []models.CriterionResult `json:"breakdown"`
}

// NoCriteria reports the 0% sentinel returned when nothing was enabled
func (r Result) NoCriteria() bool {
	return r.Enabled == 0
}

// Score evaluates every enabled criterion against the candidate.
// Percent is passed/enabled rounded to the nearest integer; with nothing
// enabled the divisor is floored at 1 and the result is 0.
func Score(c *models.RequestCriteria, cand Candidate) Result {
	res := Result{Breakdown: make([]models.CriterionResult, 0, len(Registry))}

	for _, info := range Registry {
		line := models.CriterionResult{Criterion: info.Name, Enabled: c.Enabled(info.Name)}
		if line.Enabled {
			res.Enabled++
			line.Passed = evaluate(info.Name, c, cand)
			if line.Passed {
				res.Passed++
			}
		}
		res.Breakdown = append(res.Breakdown, line)
	}

	total := res.Enabled
	if total < 1 {
		total = 1
	}
	res.Percent = int(math.Round(100 * float64(res.Passed) / float64(total)))
	return res
}

func evaluate(name models.Criterion, c *models.RequestCriteria, cand Candidate) bool {
	switch name {
	case models.CriterionLocation:
		return locationMatches(c.Locations, cand.Location)
	case models.CriterionPriceRange:
		return priceInRange(c.BudgetMin, c.BudgetMax, cand.Price)
	case models.CriterionFeatures:
		return enoughFeatures(c.Features, cand.Features)
	case models.CriterionOwnershipType:
		return c.OwnershipType != "" && cand.OwnershipType != "" &&
			strings.EqualFold(strings.TrimSpace(c.OwnershipType), strings.TrimSpace(cand.OwnershipType))
	case models.CriterionFloorLimit:
		return floorMatches(c.FloorLimit, cand.Floor)
	case models.CriterionKeywords:
		return anyKeyword(c.Keywords, cand.Text)
	}
	return false
}

func locationMatches(wanted []string, location string) bool {
	haystack := identity.NormalizeAddress(location)
	if haystack == "" {
		return false
	}
	for _, w := range wanted {
		needle := identity.NormalizeAddress(w)
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func priceInRange(min, max, price float64) bool {
	if price <= 0 || (min <= 0 && max <= 0) {
		return false
	}
	if price < min {
		return false
	}
	return max <= 0 || price <= max
}

// enoughFeatures passes when at least half of the wanted features are present
func enoughFeatures(wanted, have []string) bool {
	if len(wanted) == 0 {
		return false
	}
	present := make(map[string]bool, len(have))
	for _, f := range have {
		present[strings.ToLower(strings.TrimSpace(f))] = true
	}
	found := 0
	for _, f := range wanted {
		if present[strings.ToLower(strings.TrimSpace(f))] {
			found++
		}
	}
	return found*2 >= len(wanted)
}

func floorMatches(limit, floor string) bool {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return false
	}
	if strings.EqualFold(limit, models.FloorLimitAny) {
		return true
	}
	return floor != "" && limit == strings.TrimSpace(floor)
}

func anyKeyword(keywords []string, text string) bool {
	text = strings.ToLower(text)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
