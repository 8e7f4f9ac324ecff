// Package gaps records questions the retrieval pipeline could not answer
// from indexed documents, for developer triage.
package gaps

// Gap reasons produced by the confidence gate and its collaborators.
const (
	ReasonNoDocumentsFound  = "no_documents_found"
	ReasonLowDocConfidence  = "low_doc_confidence"
	ReasonPlaybookFallback  = "playbook_fallback"
	ReasonDeferToDeveloper  = "defer_to_developer"
	ReasonValidationFailed  = "validation_failed"
	ReasonLocationLookup    = "location_lookup_failed"
	ReasonMissingSchemeData = "missing_scheme_data"
)

// documentRelated lists the reasons that signal a content gap the
// developer can close by uploading documents. Anything else (location
// lookups, scheme data plumbing) would pollute that signal and is
// excluded from the developer-facing listing.
var documentRelated = []string{
	ReasonNoDocumentsFound,
	ReasonLowDocConfidence,
	ReasonPlaybookFallback,
	ReasonDeferToDeveloper,
	ReasonValidationFailed,
}

// DocumentRelatedReasons returns the reasons visible in gap listings.
func DocumentRelatedReasons() []string {
	out := make([]string, len(documentRelated))
	copy(out, documentRelated)
	return out
}

// IsDocumentRelated reports whether a reason belongs to the listed set.
func IsDocumentRelated(reason string) bool {
	for _, r := range documentRelated {
		if r == reason {
			return true
		}
	}
	return false
}
