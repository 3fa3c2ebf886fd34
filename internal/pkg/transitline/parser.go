// Package transitline recognises public transport lines mentioned in free
// English or Italian text, e.g. "metro 2", "M2", "linea 14 dell'autobus".
package transitline

import (
	"regexp"
	"strings"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// Rule maps a pattern to the route type it identifies. The first capture
// group of Pattern is the line ref.
type Rule struct {
	Name      string
	Pattern   *regexp.Regexp
	RouteType domain.TransitRouteType
}

// filler matches optional words between a keyword and the line number.
const filler = `(?:(?:line|linea|della|del)\s+)*`

// ref is the line identifier: digits with an optional letter suffix.
const ref = `(\d+[a-z]?)\b`

var defaultRules = []Rule{
	// subway
	{"it-linea-metro", regexp.MustCompile(`(?i)\blinea\s+` + ref + `\s+(?:(?:della|del)\s+)?(?:metropolitana|metro)\b`), domain.RouteTypeSubway},
	{"metro", regexp.MustCompile(`(?i)\b(?:metropolitana|metro|subway)\s+` + filler + ref), domain.RouteTypeSubway},
	{"m-shorthand", regexp.MustCompile(`(?i)\bM(\d+)\b`), domain.RouteTypeSubway},

	// tram
	{"it-linea-tram", regexp.MustCompile(`(?i)\blinea\s+` + ref + `\s+(?:(?:del|dello)\s+)?tram\b`), domain.RouteTypeTram},
	{"tram", regexp.MustCompile(`(?i)\btram\s+` + filler + ref), domain.RouteTypeTram},

	// bus
	{"it-linea-bus", regexp.MustCompile(`(?i)\blinea\s+` + ref + `\s+(?:dell['’]\s*|(?:della|del)\s+)?(?:autobus|bus)\b`), domain.RouteTypeBus},
	{"bus", regexp.MustCompile(`(?i)\b(?:autobus|bus)\s+` + filler + ref), domain.RouteTypeBus},
}

// DefaultRules returns a copy of the built-in rule table in evaluation order:
// subway rules, then tram, then bus.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// Parser evaluates an ordered rule table. It is safe for concurrent use.
type Parser struct {
	rules []Rule
}

// NewParser creates a parser over rules, evaluated top to bottom.
func NewParser(rules []Rule) *Parser {
	r := make([]Rule, len(rules))
	copy(r, rules)
	return &Parser{rules: r}
}

// Parse returns the first line matched by the rule table. Only the first
// hit counts; later rules are never consulted.
func (p *Parser) Parse(text string) (domain.ParsedTransitLine, bool) {
	if strings.TrimSpace(text) == "" {
		return domain.ParsedTransitLine{}, false
	}
	for _, r := range p.rules {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		return domain.ParsedTransitLine{RouteType: r.RouteType, Ref: m[1]}, true
	}
	return domain.ParsedTransitLine{}, false
}

// ParsePtr is Parse for optional input; nil yields no match.
func (p *Parser) ParsePtr(text *string) (domain.ParsedTransitLine, bool) {
	if text == nil {
		return domain.ParsedTransitLine{}, false
	}
	return p.Parse(*text)
}

// Rules returns a copy of the parser's table.
func (p *Parser) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

var defaultParser = NewParser(defaultRules)

// Parse uses the default rule table.
func Parse(text string) (domain.ParsedTransitLine, bool) {
	return defaultParser.Parse(text)
}

// ParsePtr uses the default rule table.
func ParsePtr(text *string) (domain.ParsedTransitLine, bool) {
	return defaultParser.ParsePtr(text)
}
