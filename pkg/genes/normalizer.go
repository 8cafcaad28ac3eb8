// Package genes normalises gene and syndrome names reported as confirmed mutations so they can be
// matched against the knowledge base gene table.
package genes

import (
	"regexp"
	"strings"

	"github.com/cancer-risk-screening/internal/domain"
)

// Gene symbol patterns (HUGO Gene Nomenclature Committee standards)
var (
	standardGenePattern     = regexp.MustCompile(`^[A-Z][A-Z0-9-]*[A-Z0-9]$`)
	singleLetterGenePattern = regexp.MustCompile(`^[A-Z]$`)
	separatorPattern        = regexp.MustCompile(`[\s_]+`)
)

const maxSymbolLength = 15

// Normalizer maps free-text mutation names onto canonical knowledge base keys.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer creates a normalizer. Alias keys and values are matched case-insensitively,
// e.g. {"MLH1": "LYNCH", "LYNCH SYNDROME": "LYNCH"}.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}
	for k, v := range aliases {
		n.aliases[canonicalText(k)] = canonicalText(v)
	}
	return n
}

// Normalize returns the canonical symbol for a mutation name and whether it is a well-formed symbol.
// Aliases are resolved before validation so syndrome names like "Lynch syndrome" resolve.
func (n *Normalizer) Normalize(name string) (string, bool) {
	symbol := canonicalText(name)
	if symbol == "" {
		return "", false
	}

	if alias, ok := n.aliases[symbol]; ok {
		symbol = alias
	}

	if err := ValidateSymbol(symbol); err != nil {
		return symbol, false
	}
	return symbol, true
}

// NormalizeAll normalises names, drops malformed ones and removes duplicates, returning symbols in
// first-seen order.
func (n *Normalizer) NormalizeAll(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		symbol, ok := n.Normalize(name)
		if !ok || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}

// ValidateSymbol validates a canonical (upper-case) gene symbol according to HUGO standards.
func ValidateSymbol(symbol string) error {
	if symbol != strings.ToUpper(symbol) {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol must be in uppercase letters according to HUGO standards", symbol)
	}

	if !standardGenePattern.MatchString(symbol) && !singleLetterGenePattern.MatchString(symbol) {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol must follow HUGO nomenclature standards (uppercase letters, numbers, and hyphens only)",
			symbol)
	}

	if len(symbol) > maxSymbolLength {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol exceeds maximum length", symbol)
	}

	if strings.Contains(symbol, "--") {
		return domain.NewValidationError("gene_symbol",
			"Gene symbol cannot contain consecutive hyphens", symbol)
	}

	return nil
}

// canonicalText upper-cases and collapses whitespace/underscores to single spaces.
func canonicalText(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return separatorPattern.ReplaceAllString(s, " ")
}
