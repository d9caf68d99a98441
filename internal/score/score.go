// Package score aggregates category scores into one weighted site-health
// number and orders audit findings for reporting.
package score

import "math"

// Category names one scored dimension of the audit.
type Category string

// The fixed category set. Weights below must cover exactly these.
const (
	Technical   Category = "technical"
	Content     Category = "content"
	OnPage      Category = "onpage"
	Schema      Category = "schema"
	Performance Category = "performance"
	Images      Category = "images"
	AIReadiness Category = "ai_readiness"
)

// Weights declares each category's share of the composite. They sum to 1.0
// over the full category set.
var Weights = map[Category]float64{
	Technical:   0.25,
	Content:     0.25,
	OnPage:      0.20,
	Schema:      0.10,
	Performance: 0.10,
	Images:      0.05,
	AIReadiness: 0.05,
}

// Labels maps categories to their human-readable names.
var Labels = map[Category]string{
	Technical:   "Technical SEO",
	Content:     "Content Quality",
	OnPage:      "On-Page SEO",
	Schema:      "Schema / Structured Data",
	Performance: "Performance",
	Images:      "Images",
	AIReadiness: "AI Search Readiness",
}

// ordered iteration for deterministic notMeasured reporting.
var categoryOrder = []Category{Technical, Content, OnPage, Schema, Performance, Images, AIReadiness}

// AllCategories returns the category set in reporting order. Callers must
// not modify the returned slice.
func AllCategories() []Category {
	return categoryOrder
}

// Set maps each category to a score in [0,100], or nil for "not measured".
// A category absent from the map is treated identically to nil.
type Set map[Category]*float64

// Value is a convenience for building a measured Set entry.
func Value(v float64) *float64 { return &v }

// Aggregate combines measured categories into a weighted composite,
// renormalizing over the measured weight only. When nothing is measured the
// composite is 0 and every category is reported not-measured; the audit
// fails safe to the worst score rather than an undefined result.
func Aggregate(scores Set) (float64, []Category) {
	var weightedSum, usedWeight float64
	notMeasured := make([]Category, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		v, ok := scores[cat]
		if !ok || v == nil {
			notMeasured = append(notMeasured, cat)
			continue
		}
		weightedSum += *v * Weights[cat]
		usedWeight += Weights[cat]
	}
	if usedWeight == 0 {
		return 0, categoryOrder
	}
	return math.Round(weightedSum/usedWeight*10) / 10, notMeasured
}

// Band maps a composite score to its qualitative label.
func Band(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Strong"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Needs Improvement"
	default:
		return "At Risk"
	}
}

// Grade maps a composite score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Clamp bounds v to [low, high].
func Clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}
