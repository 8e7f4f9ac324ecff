package documents

import (
	"regexp"
	"strings"
)

// houseTypePattern matches unit type codes like BD01, BS03 or BT10 in a
// filename or title.
var houseTypePattern = regexp.MustCompile(`\b(BD|BS|BT)\d{2}\b`)

// ExtractHouseTypeCode pulls a house type code out of a filename or title.
// Returns "" when the document is not tied to a specific house type.
func ExtractHouseTypeCode(fileNameOrTitle string) string {
	return houseTypePattern.FindString(strings.ToUpper(fileNameOrTitle))
}

// documentCategories maps a source type to filename patterns, checked in
// order. The first match wins.
var documentCategories = []struct {
	sourceType string
	patterns   []*regexp.Regexp
}{
	{"floor_plan", compileAll(`floor\s*plan`, `floorplan`, `room\s*layout`)},
	{"site_plan", compileAll(`site\s*plan`, `site\s*layout`, `development\s*layout`)},
	{"specification", compileAll(`\bspec(ification)?s?\b`, `technical\s*spec`, `build\s*spec`)},
	{"brochure", compileAll(`brochure`, `marketing`, `feature\s*sheet`)},
	{"homeowner_manual", compileAll(`homeowner`, `home\s*owner`, `resident\s*guide`, `welcome\s*pack`)},
	{"appliance_manual", compileAll(`manual`, `instruction`, `operating`, `handbook`)},
	{"maintenance_guide", compileAll(`maintenance`, `care\s*(and|&)\s*maintenance`, `upkeep`)},
	{"ber_certificate", compileAll(`\bber\b`, `building\s*energy`, `energy\s*rating`, `nzeb`)},
	{"warranty", compileAll(`warranty`, `homebond`, `guarantee`)},
	{"contract", compileAll(`contract`, `agreement`, `terms`)},
	{"management", compileAll(`management\s*company`, `\bomc\b`, `service\s*charge`)},
	{"location_info", compileAll(`location`, `area\s*guide`, `local\s*info`, `amenities`)},
	{"faq", compileAll(`\bfaq`, `frequently\s*asked`, `common\s*questions`)},
	{"contact_info", compileAll(`contact`, `emergency`, `phone\s*numbers`, `helpline`)},
	{"house_type_info", compileAll(`house\s*type`, `unit\s*type`, `\b(bd|bs|bt)\d{2}\b`)},
	{"snagging_report", compileAll(`snag(ging)?\s*(list|report)?`, `punch\s*list`, `defects?\s*(list|report)`)},
	{"fire_safety", compileAll(`fire\s*safety`, `fire\s*cert`, `evacuation`)},
	{"kitchen_spec", compileAll(`kitchen\s*(spec|narrative|schedule)`, `appliance\s*(list|spec|schedule)`)},
	{"heating_spec", compileAll(`heating\s*(spec|manual|guide)`, `heat\s*pump`, `boiler\s*(manual|spec)`)},
	{"ventilation_spec", compileAll(`ventilation`, `mvhr`, `air\s*quality`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return compiled
}

// ClassifyDocumentType derives a coarse source type from a filename.
// Underscores and hyphens are treated as spaces before matching.
func ClassifyDocumentType(fileName string) string {
	normalized := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(fileName))

	for _, category := range documentCategories {
		for _, pattern := range category.patterns {
			if pattern.MatchString(normalized) {
				return category.sourceType
			}
		}
	}
	return "general"
}
