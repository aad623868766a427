// Package keyword classifies inbound SMS text against the carrier-mandated
// compliance vocabularies (STOP, START, HELP and their synonyms).
//
// Matching is exact: trim whitespace, uppercase, then compare against the fixed
// keyword sets. No substring, regex, or fuzzy matching — regulatory correctness
// requires exact keyword compliance, not intent detection. Internal whitespace
// is not collapsed, so "STOP ALL" is ordinary content while "STOPALL" is a
// stop keyword.
package keyword

import "strings"

// Classification is the compliance class of an inbound message body.
type Classification string

const (
	// ClassStop covers opt-out keywords.
	ClassStop Classification = "stop"
	// ClassStart covers opt-in keywords.
	ClassStart Classification = "start"
	// ClassHelp covers help/info keywords.
	ClassHelp Classification = "help"
	// ClassOrdinary is any message that is not an exact compliance keyword.
	ClassOrdinary Classification = "ordinary"
)

var stopKeywords = map[string]bool{
	"STOP":        true,
	"STOPALL":     true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"END":         true,
	"QUIT":        true,
}

var startKeywords = map[string]bool{
	"START":     true,
	"UNSTOP":    true,
	"SUBSCRIBE": true,
}

var helpKeywords = map[string]bool{
	"HELP": true,
	"INFO": true,
}

// Classify normalizes the raw text and returns its compliance classification.
// Empty or whitespace-only input is ordinary.
func Classify(raw string) Classification {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case stopKeywords[normalized]:
		return ClassStop
	case startKeywords[normalized]:
		return ClassStart
	case helpKeywords[normalized]:
		return ClassHelp
	default:
		return ClassOrdinary
	}
}
