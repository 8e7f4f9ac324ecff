package retrieval

import "regexp"

// intentPatterns classify a question into coarse categories. The matched
// intents feed gap entries so developers can see what kind of question
// went unanswered.
var intentPatterns = []struct {
	intent  string
	pattern *regexp.Regexp
}{
	{"location", regexp.MustCompile(`(?i)where|near(by)?|close|distance|how far|local`)},
	{"operational", regexp.MustCompile(`(?i)how (do|to|can)|what('s| is) the|instructions|operate|use|turn on|set`)},
	{"contact", regexp.MustCompile(`(?i)contact|call|email|phone|who|report|complain|support`)},
	{"technical", regexp.MustCompile(`(?i)what (type|kind|model|brand)|specification|spec|rated|rating`)},
	{"financial", regexp.MustCompile(`(?i)cost|price|fee|charge|pay|expense|how much`)},
	{"timing", regexp.MustCompile(`(?i)when|what time|schedule|day|hours|open`)},
}

// DetectIntents returns all matching intent categories for a question.
func DetectIntents(question string) []string {
	var intents []string
	for _, entry := range intentPatterns {
		if entry.pattern.MatchString(question) {
			intents = append(intents, entry.intent)
		}
	}
	return intents
}

// PrimaryIntent returns the first matching intent, or "unknown".
func PrimaryIntent(question string) string {
	if intents := DetectIntents(question); len(intents) > 0 {
		return intents[0]
	}
	return "unknown"
}
