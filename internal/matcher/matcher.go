// Package matcher reconciles free-text purchase lines (from scanned
// invoices or typed notes) with the ingredient table.
//
// Policy: both sides are normalized (lowercase, punctuation folded to
// spaces, whitespace collapsed, size tokens such as "5kg" removed from the
// purchase text). An ingredient whose normalized name equals the text wins
// outright. Otherwise every ingredient whose normalized name contains the
// text is a candidate: one candidate is a match, several are ambiguous.
package matcher

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchStatus represents the status of a match operation
type MatchStatus int

const (
	Matched MatchStatus = iota
	Ambiguous
	Unmatched
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Ambiguous:
		return "Ambiguous"
	case Unmatched:
		return "Unmatched"
	default:
		return "Unknown"
	}
}

// Item is an ingredient the matcher can resolve to.
type Item struct {
	ID   uuid.UUID
	Name string
	Unit string
}

// MatchResult contains the result of a matching operation
type MatchResult struct {
	Status     MatchStatus
	Item       *Item  // when Matched
	Candidates []Item // when Ambiguous
	Query      string // normalized text that was matched
}

// Matcher holds the ingredient list with pre-normalized names.
type Matcher struct {
	items      []Item
	normalized []string
}

// New creates a Matcher. Item order is preserved in Candidates.
func New(items []Item) *Matcher {
	m := &Matcher{
		items:      items,
		normalized: make([]string, len(items)),
	}
	for i, item := range items {
		m.normalized[i] = normalize(item.Name)
	}
	return m
}

// Match resolves text to at most one item.
func (m *Matcher) Match(text string) MatchResult {
	_, _, descTokens := extractQuantity(tokenize(normalize(text)))
	query := strings.Join(descTokens, " ")
	if query == "" {
		return MatchResult{Status: Unmatched, Query: query}
	}

	var exact, contains []Item
	for i, name := range m.normalized {
		switch {
		case name == query:
			exact = append(exact, m.items[i])
		case strings.Contains(name, query):
			contains = append(contains, m.items[i])
		}
	}

	switch {
	case len(exact) == 1:
		return MatchResult{Status: Matched, Item: &exact[0], Query: query}
	case len(exact) > 1:
		return MatchResult{Status: Ambiguous, Candidates: exact, Query: query}
	case len(contains) == 1:
		return MatchResult{Status: Matched, Item: &contains[0], Query: query}
	case len(contains) > 1:
		return MatchResult{Status: Ambiguous, Candidates: contains, Query: query}
	}
	return MatchResult{Status: Unmatched, Query: query}
}

// foldAccents strips combining marks so "Feijão" and "FEIJAO" compare equal.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// normalize folds accents, lowercases, and replaces non-alphanumeric chars with spaces
func normalize(s string) string {
	s = foldAccents(s)
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// tokenize splits a string on whitespace
func tokenize(s string) []string {
	return strings.Fields(s)
}

// extractQuantity finds size tokens like "5kg", "500g", "12un" and separates
// them from the description. Stray dots left by normalize are dropped.
func extractQuantity(tokens []string) (qty float64, unit string, rest []string) {
	qty = 1
	rest = make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if parsedQty, parsedUnit, ok := parseQtyUnit(tok); ok {
			qty = parsedQty
			unit = parsedUnit
			continue
		}
		tok = strings.Trim(tok, ".")
		if tok != "" {
			rest = append(rest, tok)
		}
	}

	return qty, unit, rest
}

// parseQtyUnit parses a token like "5kg" into (5, "kg", true)
func parseQtyUnit(tok string) (float64, string, bool) {
	if tok == "" {
		return 0, "", false
	}

	digitEnd := 0
	for i, r := range tok {
		if unicode.IsDigit(r) || r == '.' {
			digitEnd = i + 1
		} else {
			break
		}
	}

	if digitEnd == 0 || digitEnd == len(tok) {
		return 0, "", false
	}

	qty, err := strconv.ParseFloat(tok[:digitEnd], 64)
	if err != nil {
		return 0, "", false
	}

	unitPart := tok[digitEnd:]
	for _, r := range unitPart {
		if !unicode.IsLetter(r) {
			return 0, "", false
		}
	}

	return qty, unitPart, true
}
