// Package matching scores approved listings against buyer requests.
//
// Everything here is pure: no storage, no clock. Services decide which
// listings to feed in and what to do with the results.
package matching

import (
	"propmarket/models"
)

// CriterionInfo describes one entry of the registry
type CriterionInfo struct {
	Name  models.Criterion `json:"name"`
	Label string           `json:"label"`
}

// Registry lists the scorable criteria in evaluation order
var Registry = []CriterionInfo{
	{Name: models.CriterionLocation, Label: "Location"},
	{Name: models.CriterionPriceRange, Label: "Price range"},
	{Name: models.CriterionFeatures, Label: "Features"},
	{Name: models.CriterionOwnershipType, Label: "Ownership type"},
	{Name: models.CriterionFloorLimit, Label: "Floor limit"},
	{Name: models.CriterionKeywords, Label: "Keywords"},
}

// IsKnown reports whether name is in the registry
func IsKnown(name models.Criterion) bool {
	for _, c := range Registry {
		if c.Name == name {
			return true
		}
	}
	return false
}

// EnabledCount returns how many registry criteria the scoring flags turn on
func EnabledCount(scoring map[models.Criterion]bool) int {
	n := 0
	for _, c := range Registry {
		if scoring[c.Name] {
			n++
		}
	}
	return n
}

// ValidateScoring rejects unknown criterion names
func ValidateScoring(scoring map[models.Criterion]bool) error {
	for name := range scoring {
		if !IsKnown(name) {
			return models.Invalid("criteria.scoring", "unknown criterion %q", name)
		}
	}
	return nil
}
