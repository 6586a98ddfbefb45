// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
)

// Category is a fixed taxation domain used to scope retrieval and prompting.
// The set is closed: values parsed from model output are validated with
// ParseCategory and anything unrecognized is dropped.
type Category string

const (
	CategoryPayrollTax            Category = "payroll_tax"
	CategoryLandTax               Category = "land_tax"
	CategoryParkingSpaceLevy      Category = "parking_space_levy"
	CategoryTransferDuty          Category = "transfer_duty"
	CategoryForeignPurchaser      Category = "foreign_purchaser_duty"
	CategoryPremiumPropertyTax    Category = "premium_property_tax"
	CategoryMortgageDuty          Category = "mortgage_duty"
	CategoryMotorVehicleDuty      Category = "motor_vehicle_duty"
	CategoryInsuranceDuty         Category = "insurance_duty"
	CategoryGamingMachineTax      Category = "gaming_machine_tax"
	CategoryBettingTax            Category = "betting_tax"
	CategoryRoyalties             Category = "royalties"
	CategoryFirstHomeOwnerGrant   Category = "first_home_owner_grant"
	CategoryEmergencyServicesLevy Category = "emergency_services_levy"
	CategoryFinesPenalties        Category = "fines_and_penalties"
	CategoryRevenueAdministration Category = "revenue_administration"

	// CategoryGeneral is the fallback when nothing more specific applies.
	CategoryGeneral Category = "general"
)

// categoryInfo describes how a category is presented and detected in text.
type categoryInfo struct {
	label    string
	keywords []string
}

// categoryOrder is the canonical taxonomy order used in prompts and listings.
var categoryOrder = []Category{
	CategoryPayrollTax,
	CategoryLandTax,
	CategoryParkingSpaceLevy,
	CategoryTransferDuty,
	CategoryForeignPurchaser,
	CategoryPremiumPropertyTax,
	CategoryMortgageDuty,
	CategoryMotorVehicleDuty,
	CategoryInsuranceDuty,
	CategoryGamingMachineTax,
	CategoryBettingTax,
	CategoryRoyalties,
	CategoryFirstHomeOwnerGrant,
	CategoryEmergencyServicesLevy,
	CategoryFinesPenalties,
	CategoryRevenueAdministration,
	CategoryGeneral,
}

// Keywords are lowercase phrases matched against lowercased text. Longer,
// more specific phrases come first.
var categories = map[Category]categoryInfo{
	CategoryPayrollTax: {"Payroll Tax", []string{
		"payroll tax", "payroll", "wages", "salary", "salaries", "employee", "employer", "contractor", "grouping",
	}},
	CategoryLandTax: {"Land Tax", []string{
		"land tax", "land value", "unimproved value", "principal place of residence", "principal residence",
		"property value", "investment property", "ppor",
	}},
	CategoryParkingSpaceLevy: {"Parking Space Levy", []string{
		"parking space levy", "parking levy", "parking space", "parking spaces", "car park", "parking",
	}},
	CategoryTransferDuty: {"Transfer Duty", []string{
		"transfer duty", "stamp duty", "conveyance", "dutiable value", "dutiable transaction",
	}},
	CategoryForeignPurchaser: {"Foreign Purchaser Duty", []string{
		"foreign purchaser", "surcharge purchaser duty", "surcharge duty", "foreign person",
	}},
	CategoryPremiumPropertyTax: {"Premium Property Tax", []string{
		"premium property tax", "premium property", "premium rate",
	}},
	CategoryMortgageDuty: {"Mortgage Duty", []string{
		"mortgage duty", "mortgage",
	}},
	CategoryMotorVehicleDuty: {"Motor Vehicle Duty", []string{
		"motor vehicle duty", "vehicle registration", "motor vehicle", "car registration",
	}},
	CategoryInsuranceDuty: {"Insurance Duty", []string{
		"insurance duty", "insurance premium", "insurance",
	}},
	CategoryGamingMachineTax: {"Gaming Machine Tax", []string{
		"gaming machine tax", "gaming machine", "poker machine", "pokies",
	}},
	CategoryBettingTax: {"Betting Tax", []string{
		"betting tax", "point of consumption", "wagering", "betting",
	}},
	CategoryRoyalties: {"Royalties", []string{
		"royalty", "royalties", "coal", "mineral", "petroleum",
	}},
	CategoryFirstHomeOwnerGrant: {"First Home Owner Grant", []string{
		"first home owner grant", "first home owner", "first home buyer", "fhog",
	}},
	CategoryEmergencyServicesLevy: {"Emergency Services Levy", []string{
		"emergency services levy", "fire and emergency services",
	}},
	CategoryFinesPenalties: {"Fines and Penalties", []string{
		"penalty notice", "enforcement order", "penalty tax", "fine", "fines",
	}},
	CategoryRevenueAdministration: {"Revenue Administration", []string{
		"taxation administration", "objection", "tax default", "refund", "assessment", "audit",
	}},
	CategoryGeneral: {"General", nil},
}

// categoryAliases maps common spellings to canonical categories.
var categoryAliases = map[string]Category{
	"payroll":              CategoryPayrollTax,
	"land":                 CategoryLandTax,
	"parking":              CategoryParkingSpaceLevy,
	"parking_levy":         CategoryParkingSpaceLevy,
	"stamp_duty":           CategoryTransferDuty,
	"duties":               CategoryTransferDuty,
	"foreign_purchaser":    CategoryForeignPurchaser,
	"surcharge_duty":       CategoryForeignPurchaser,
	"premium_property":     CategoryPremiumPropertyTax,
	"motor_vehicle":        CategoryMotorVehicleDuty,
	"gaming":               CategoryGamingMachineTax,
	"betting":              CategoryBettingTax,
	"royalty":              CategoryRoyalties,
	"coal_royalty":         CategoryRoyalties,
	"mineral_royalty":      CategoryRoyalties,
	"petroleum_royalty":    CategoryRoyalties,
	"first_home_buyer":     CategoryFirstHomeOwnerGrant,
	"fhog":                 CategoryFirstHomeOwnerGrant,
	"emergency_services":   CategoryEmergencyServicesLevy,
	"fines":                CategoryFinesPenalties,
	"penalties":            CategoryFinesPenalties,
	"penalty_notices":      CategoryFinesPenalties,
	"administration":       CategoryRevenueAdministration,
	"tax_administration":   CategoryRevenueAdministration,
	"unknown":              CategoryGeneral,
	"other":                CategoryGeneral,
	"general_tax":          CategoryGeneral,
	"revenue_general":      CategoryGeneral,
	"general_revenue":      CategoryGeneral,
	"duties_general":       CategoryGeneral,
	"general_inquiry":      CategoryGeneral,
	"general_information":  CategoryGeneral,
	"revenue_nsw_general":  CategoryGeneral,
	"taxation_general":     CategoryGeneral,
	"general_taxation":     CategoryGeneral,
	"miscellaneous":        CategoryGeneral,
	"not_applicable":       CategoryGeneral,
	"none":                 CategoryGeneral,
}

// ParseCategory normalizes s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "" {
		return "", false
	}
	if _, ok := categories[Category(key)]; ok {
		return Category(key), true
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return "", false
}

// AllCategories returns the taxonomy in canonical order, general last.
func AllCategories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Valid reports whether c is a member of the taxonomy.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Label returns the human-readable name, e.g. "Payroll Tax".
func (c Category) Label() string {
	if info, ok := categories[c]; ok {
		return info.label
	}
	return string(c)
}

// Keywords returns the detection phrases for c. General has none.
func (c Category) Keywords() []string {
	return categories[c].keywords
}

// MentionedIn reports whether text addresses c by label or keyword.
// General is considered addressed by any text.
func (c Category) MentionedIn(text string) bool {
	if c == CategoryGeneral {
		return true
	}
	return c.FirstMention(strings.ToLower(text)) >= 0
}

// FirstMention returns the byte offset of the earliest label or keyword
// match in lowercase text, or -1.
func (c Category) FirstMention(lower string) int {
	first := PhraseIndex(lower, strings.ToLower(c.Label()))
	for _, kw := range c.Keywords() {
		if i := PhraseIndex(lower, kw); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

// PhraseIndex returns the offset of the first occurrence of phrase in text
// on word boundaries, so "fine" does not match "define", or -1. Both
// arguments are expected lowercase.
func PhraseIndex(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return -1
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return i
		}
		start = i + 1
	}
	return -1
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_' || b >= 0x80
}

// Intent is what the user wants to know about a category.
type Intent string

const (
	IntentCalculation Intent = "calculation"
	IntentRateLookup  Intent = "rate_lookup"
	IntentExemption   Intent = "exemption"
	IntentEligibility Intent = "eligibility"
	IntentProcess     Intent = "process"
	IntentDeadline    Intent = "deadline"
	IntentPenalty     Intent = "penalty"
	IntentDefinition  Intent = "definition"
	IntentCompliance  Intent = "compliance"
	IntentGeneral     Intent = "general"
)

var intents = map[Intent]bool{
	IntentCalculation: true,
	IntentRateLookup:  true,
	IntentExemption:   true,
	IntentEligibility: true,
	IntentProcess:     true,
	IntentDeadline:    true,
	IntentPenalty:     true,
	IntentDefinition:  true,
	IntentCompliance:  true,
	IntentGeneral:     true,
}

// ParseIntent normalizes s into a known Intent, falling back to IntentGeneral.
func ParseIntent(s string) Intent {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "rate", "rates", "rate_inquiry":
		return IntentRateLookup
	case "exemption_lookup", "exemptions":
		return IntentExemption
	case "scenario", "unknown", "":
		return IntentGeneral
	}
	if intents[Intent(key)] {
		return Intent(key)
	}
	return IntentGeneral
}
