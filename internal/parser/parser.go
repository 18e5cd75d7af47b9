// Package parser reads typed purchase notes, one bought item per line:
//
//	Arroz Integral 5kg 42,50
//	Peito de Frango 3 kg R$ 66.00
//	Ovos 30un 27
//
// Each line carries a description, an optional quantity with unit, and the
// line total as its last number. Prices follow Brazilian grouping: a dot
// followed by exactly three digits and no comma, as in "1.500", groups
// thousands. Quantities never group, so "1.500kg" is one and a half kilos.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsedNote is the result of parsing a purchase note.
type ParsedNote struct {
	Items    []ParsedItem
	Warnings []string // Lines that failed to parse
}

// ParsedItem is a single item parsed from a note line.
type ParsedItem struct {
	RawText     string
	Description string
	Qty         decimal.Decimal
	Unit        string
	TotalPrice  decimal.Decimal
}

// UnitPrice is the line total spread over the quantity. It is not rounded:
// a gram bought in a 500 g bag can cost less than a cent.
func (p ParsedItem) UnitPrice() decimal.Decimal {
	if !p.Qty.IsPositive() {
		return p.TotalPrice
	}
	return p.TotalPrice.Div(p.Qty)
}

// Known quantity units (not currency markers).
var qtyUnits = map[string]bool{
	"kg": true, "g": true, "gr": true,
	"un": true, "und": true, "unid": true, "unidade": true, "unidades": true,
	"pc": true, "pcs": true, "pct": true, "cx": true,
	"l": true, "ml": true, "dz": true,
}

var currencyMarkers = map[string]bool{"r$": true, "rs": true, "$": true}

// ParseNote parses a purchase note. Blank lines and lines starting with '#'
// are ignored; lines without a price become warnings.
func ParseNote(text string) (*ParsedNote, error) {
	var items []ParsedItem
	var warnings []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		item, err := parseItemLine(line)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped: %s", line))
			continue
		}
		items = append(items, *item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no items found in note")
	}

	return &ParsedNote{
		Items:    items,
		Warnings: warnings,
	}, nil
}

// parseItemLine parses a single item line (e.g. "batata doce 2kg 9,00").
func parseItemLine(line string) (*ParsedItem, error) {
	tokens := strings.Fields(line)

	// The price is the last bare number on the line.
	priceIdx := -1
	var totalPrice decimal.Decimal
	for i := len(tokens) - 1; i >= 0; i-- {
		if p, ok := parsePrice(tokens[i]); ok {
			priceIdx = i
			totalPrice = p
			break
		}
	}
	if priceIdx < 0 {
		return nil, fmt.Errorf("no price found in line: %q", line)
	}

	qty := decimal.NewFromInt(1)
	var unit string
	var qtyFound bool
	var descTokens []string

	for i := 0; i < len(tokens); i++ {
		if i == priceIdx {
			continue
		}
		tok := tokens[i]
		lower := strings.ToLower(tok)
		if currencyMarkers[lower] {
			continue
		}
		if !qtyFound {
			if q, u, ok := parseQtyUnitToken(lower); ok {
				qty, unit, qtyFound = q, u, true
				continue
			}
			// "3 kg": bare number followed by a unit token
			if i+1 < len(tokens) && i+1 != priceIdx && qtyUnits[strings.ToLower(tokens[i+1])] {
				if q, ok := parseNumber(lower); ok {
					qty, unit, qtyFound = q, strings.ToLower(tokens[i+1]), true
					i++
					continue
				}
			}
		}
		descTokens = append(descTokens, tok)
	}

	if len(descTokens) == 0 {
		return nil, fmt.Errorf("no description in line: %q", line)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive in line: %q", line)
	}

	return &ParsedItem{
		RawText:     line,
		Description: strings.Join(descTokens, " "),
		Qty:         qty,
		Unit:        unit,
		TotalPrice:  totalPrice,
	}, nil
}

// parsePrice parses "42,50", "42.50", "R$42,50", "1.234,56" and "1.500".
func parsePrice(tok string) (decimal.Decimal, bool) {
	lower := strings.ToLower(tok)
	for marker := range currencyMarkers {
		lower = strings.TrimPrefix(lower, marker)
	}
	if groupsThousands(lower) {
		lower = strings.ReplaceAll(lower, ".", "")
	}
	return parseNumber(lower)
}

// groupsThousands reports whether s is digits grouped by dots in threes
// with no comma, like "1.500" or "12.345.678".
func groupsThousands(s string) bool {
	if strings.Contains(s, ",") {
		return false
	}
	groups := strings.Split(s, ".")
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for i, g := range groups {
		if i > 0 && len(g) != 3 {
			return false
		}
		for _, r := range g {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

// parseNumber accepts either '.' or ',' as the decimal separator. When both
// appear, the last one is the decimal separator and the other groups thousands.
func parseNumber(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, false
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseQtyUnitToken parses "5kg" → (5, "kg", true). Only matches known units.
func parseQtyUnitToken(tok string) (decimal.Decimal, string, bool) {
	if tok == "" {
		return decimal.Zero, "", false
	}

	// Find boundary between digits and letters
	digitEnd := 0
	for i, r := range tok {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			digitEnd = i + 1
		} else {
			break
		}
	}

	if digitEnd == 0 || digitEnd == len(tok) {
		return decimal.Zero, "", false
	}

	unitPart := tok[digitEnd:]
	if !qtyUnits[unitPart] {
		return decimal.Zero, "", false
	}

	qty, ok := parseNumber(tok[:digitEnd])
	if !ok {
		return decimal.Zero, "", false
	}

	return qty, unitPart, true
}
