package scheduling

import "strings"

// =============================================================================
// SPECIALTY NORMALIZATION
// =============================================================================
// Free-text specialty strings from the presentation layer are mapped to
// the canonical tags doctors are registered under. Unmapped input passes
// through lowercased and will usually match nothing.

var specialtyKeywords = map[string][]string{
	"cardiology":       {"heart", "cardiac", "cardiologist", "cardiovascular"},
	"neurology":        {"brain", "nerve", "neuro", "nervous system"},
	"orthopedics":      {"bone", "joint", "orthopedic", "musculoskeletal"},
	"general medicine": {"general", "family", "primary", "gp"},
}

// NormalizeSpecialty maps a free-text specialty to its canonical tag.
func NormalizeSpecialty(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return ""
	}
	for canonical, keywords := range specialtyKeywords {
		if strings.Contains(canonical, lower) {
			return canonical
		}
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return canonical
			}
		}
	}
	return lower
}

// SpecialtyMatches reports whether a doctor's registered specialty matches
// a normalized tag.
func SpecialtyMatches(doctorSpecialty, normalized string) bool {
	return strings.Contains(strings.ToLower(doctorSpecialty), normalized)
}
