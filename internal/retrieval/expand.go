package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// queryExpansions maps common homeowner terms and abbreviations to
// related concepts, so relevant content is found even when exact terms
// don't match the document wording.
var queryExpansions = map[string][]string{
	// Energy & heating
	"ber":         {"building energy rating", "energy rating", "energy efficiency", "a-rated"},
	"heating":     {"heat pump", "boiler", "radiator", "underfloor heating", "thermostat"},
	"heat pump":   {"air to water", "heating system", "hot water"},
	"hot water":   {"cylinder", "immersion", "water heater", "heating"},
	"insulation":  {"u-value", "thermal", "heat loss", "energy efficiency"},
	"solar":       {"pv panels", "photovoltaic", "renewable"},
	"ventilation": {"mvhr", "air quality", "extract fan", "humidity", "condensation"},

	// Transport & area
	"bus":       {"public transport", "route", "bus stop", "commute"},
	"train":     {"rail", "station", "commute", "public transport"},
	"transport": {"bus", "train", "commute", "travel"},
	"parking":   {"car space", "garage", "driveway", "visitor parking", "ev charging"},
	"school":    {"primary school", "secondary school", "education"},
	"schools":   {"primary school", "secondary school", "education", "creche"},

	// Property features
	"size":     {"square feet", "square metres", "floor area", "dimensions"},
	"bedroom":  {"bed", "room", "accommodation"},
	"bathroom": {"ensuite", "shower", "toilet", "wc"},
	"kitchen":  {"appliances", "oven", "hob", "cooking"},
	"garden":   {"outdoor", "patio", "landscaping", "back garden"},

	// Maintenance & issues
	"repair":      {"fix", "maintenance", "broken", "defect"},
	"warranty":    {"guarantee", "homebond", "defect", "cover"},
	"defect":      {"snag", "issue", "problem", "fault", "repair"},
	"maintenance": {"upkeep", "service", "repair", "maintain"},

	// Management & contacts
	"contact":    {"phone", "email", "call", "reach"},
	"management": {"management company", "omc", "service charge", "fees"},
	"fees":       {"service charge", "management fee", "costs", "annual charge"},

	// Waste & utilities
	"bin":       {"waste", "rubbish", "recycling", "collection"},
	"bins":      {"waste collection", "rubbish", "recycling", "bin day"},
	"broadband": {"internet", "wifi", "fibre", "connection"},

	// Safety
	"alarm": {"security", "intruder", "burglar", "monitoring"},
	"fire":  {"smoke detector", "fire alarm", "emergency", "safety"},
}

// maxExpansions limits added terms to avoid over-diluting the query.
const maxExpansions = 5

// ExpandQuery enhances a query with related terms for better recall.
// Returns the query unchanged when no known term appears in it.
// Matching terms are processed in sorted order so the expansion is
// deterministic for a given query.
func ExpandQuery(query string) string {
	lowerQuery := strings.ToLower(query)

	var matched []string
	for term := range queryExpansions {
		termRegex := regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if termRegex.MatchString(lowerQuery) {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)

	var expansions []string
	for _, term := range matched {
		for _, related := range queryExpansions[term] {
			if !strings.Contains(lowerQuery, strings.ToLower(related)) {
				expansions = append(expansions, related)
			}
		}
	}

	if len(expansions) == 0 {
		return query
	}
	if len(expansions) > maxExpansions {
		expansions = expansions[:maxExpansions]
	}
	return fmt.Sprintf("%s (related: %s)", query, strings.Join(expansions, ", "))
}
