package domain

import "strings"

// Category is one of the fixed tax categories
type Category string

const (
	OfficeExpenses       Category = "Office Expenses"
	MealsEntertainment   Category = "Meals & Entertainment"
	Travel               Category = "Travel"
	VehicleExpenses      Category = "Vehicle Expenses"
	ProfessionalServices Category = "Professional Services"
	MarketingAdvertising Category = "Marketing & Advertising"
	UtilitiesRent        Category = "Utilities & Rent"
	Insurance            Category = "Insurance"
	EducationTraining    Category = "Education & Training"
	Other                Category = "Other"
)

var allCategories = []Category{
	OfficeExpenses,
	MealsEntertainment,
	Travel,
	VehicleExpenses,
	ProfessionalServices,
	MarketingAdvertising,
	UtilitiesRent,
	Insurance,
	EducationTraining,
	Other,
}

var categoryDescriptions = map[Category]string{
	OfficeExpenses:       "Office supplies, software, equipment, subscriptions",
	MealsEntertainment:   "Restaurant meals, client entertainment (50% deductible in Canada)",
	Travel:               "Airfare, hotels, accommodation, taxis, public transit",
	VehicleExpenses:      "Fuel, car maintenance, parking, tolls",
	ProfessionalServices: "Legal fees, accounting, consulting, professional advice",
	MarketingAdvertising: "Advertising costs, promotional materials, marketing services",
	UtilitiesRent:        "Office rent, electricity, internet, phone bills",
	Insurance:            "Business insurance premiums",
	EducationTraining:    "Courses, seminars, professional development, books",
	Other:                "Anything that doesn't fit the above categories",
}

// Categories returns the fixed category set in display order
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Description returns the human definition used in prompts
func (c Category) Description() string {
	return categoryDescriptions[c]
}

// ParseCategory matches input against the fixed set, ignoring case and
// surrounding whitespace. Unmatched input yields Other and false.
func ParseCategory(input string) (Category, bool) {
	normalized := strings.TrimSpace(input)
	for _, c := range allCategories {
		if strings.EqualFold(normalized, string(c)) {
			return c, true
		}
	}
	return Other, false
}

// Confidence is a classification certainty in [0,100]
type Confidence int

// NewConfidence clamps n into [0,100]
func NewConfidence(n int) Confidence {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return Confidence(n)
}

// Classification pairs a category with the oracle's confidence
type Classification struct {
	Category   Category   `json:"category"`
	Confidence Confidence `json:"confidence"`
}

// Fallback is the classification used whenever the oracle cannot be trusted
var Fallback = Classification{Category: Other, Confidence: 0}
