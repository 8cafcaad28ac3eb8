// Package hgvs parses the HGVS expressions that genetic test reports attach to variants, so a
// reported variant can be checked before it is counted towards genetic risk.
package hgvs

import (
	"regexp"
	"strings"

	"github.com/cancer-risk-screening/internal/domain"
)

// Level is the reference sequence level of an expression.
type Level string

const (
	LevelGenomic Level = "genomic"
	LevelCoding  Level = "coding"
	LevelProtein Level = "protein"
)

// ChangeType is the kind of sequence change described.
type ChangeType string

const (
	ChangeSubstitution ChangeType = "substitution"
	ChangeDeletion     ChangeType = "deletion"
	ChangeInsertion    ChangeType = "insertion"
	ChangeDelIns       ChangeType = "delins"
	ChangeDuplication  ChangeType = "duplication"
	ChangeInversion    ChangeType = "inversion"
	ChangeFrameshift   ChangeType = "frameshift"
	ChangeNonsense     ChangeType = "nonsense"
)

// Expression is a parsed HGVS expression.
type Expression struct {
	Raw       string     `json:"raw"`
	Reference string     `json:"reference"`
	Level     Level      `json:"level"`
	Change    ChangeType `json:"change"`
	Start     string     `json:"start"`
	End       string     `json:"end,omitempty"`
}

type pattern struct {
	change ChangeType
	re     *regexp.Regexp
}

const (
	genomicRef = `(?P<ref>NC_\d+\.\d+|chr(?:\d{1,2}|[XYM]))`
	codingRef  = `(?P<ref>(?:NM|NR|XM|XR|ENST)_?\d+(?:\.\d+)?)`
	proteinRef = `(?P<ref>(?:NP|XP|ENSP)_?\d+(?:\.\d+)?)`

	// c. positions may be 5'/3' UTR (-, *) and carry intronic offsets (c.213-2)
	codingPos   = `[*\-]?\d+(?:[+\-]\d+)?`
	aminoAcid   = `(?:[A-Z][a-z]{2})`
	nucleotides = `[ACGT]`
)

func compile(ref, level, body string) *regexp.Regexp {
	return regexp.MustCompile(`^` + ref + `:` + level + `\.` + body + `$`)
}

func span(pos string) string {
	return `(?P<start>` + pos + `)(?:_(?P<end>` + pos + `))?`
}

// Patterns per level, most specific first.
var patterns = map[Level][]pattern{
	LevelGenomic: {
		{ChangeSubstitution, compile(genomicRef, "g", `(?P<start>\d+)`+nucleotides+`>`+nucleotides)},
		{ChangeDelIns, compile(genomicRef, "g", span(`\d+`)+`delins`+nucleotides+`+`)},
		{ChangeDeletion, compile(genomicRef, "g", span(`\d+`)+`del`+nucleotides+`*`)},
		{ChangeInsertion, compile(genomicRef, "g", span(`\d+`)+`ins`+nucleotides+`+`)},
		{ChangeDuplication, compile(genomicRef, "g", span(`\d+`)+`dup`+nucleotides+`*`)},
		{ChangeInversion, compile(genomicRef, "g", `(?P<start>\d+)_(?P<end>\d+)inv`)},
	},
	LevelCoding: {
		{ChangeFrameshift, compile(codingRef, "c", span(codingPos)+`(?:del|dup|ins)`+nucleotides+`*fs`)},
		{ChangeSubstitution, compile(codingRef, "c", `(?P<start>`+codingPos+`)`+nucleotides+`>`+nucleotides)},
		{ChangeDelIns, compile(codingRef, "c", span(codingPos)+`delins`+nucleotides+`+`)},
		{ChangeDeletion, compile(codingRef, "c", span(codingPos)+`del`+nucleotides+`*`)},
		{ChangeInsertion, compile(codingRef, "c", span(codingPos)+`ins`+nucleotides+`+`)},
		{ChangeDuplication, compile(codingRef, "c", span(codingPos)+`dup`+nucleotides+`*`)},
	},
	LevelProtein: {
		{ChangeNonsense, compile(proteinRef, "p", `\(?(?P<start>`+aminoAcid+`\d+)(?:\*|Ter)\)?`)},
		{ChangeFrameshift, compile(proteinRef, "p", `\(?(?P<start>`+aminoAcid+`\d+)`+aminoAcid+`?fs(?:\*|Ter)?\d*\)?`)},
		{ChangeSubstitution, compile(proteinRef, "p", `\(?(?P<start>`+aminoAcid+`\d+)`+aminoAcid+`\)?`)},
		{ChangeDeletion, compile(proteinRef, "p", `\(?(?P<start>`+aminoAcid+`\d+)(?:_(?P<end>`+aminoAcid+`\d+))?del\)?`)},
		{ChangeDuplication, compile(proteinRef, "p", `\(?(?P<start>`+aminoAcid+`\d+)(?:_(?P<end>`+aminoAcid+`\d+))?dup\)?`)},
	},
}

var levelMarkers = []struct {
	marker string
	level  Level
}{
	{":g.", LevelGenomic},
	{":c.", LevelCoding},
	{":p.", LevelProtein},
}

// Parse parses an HGVS expression. Malformed input yields a *domain.ValidationError on field "hgvs".
func Parse(input string) (*Expression, error) {
	notation := strings.TrimSpace(input)
	if notation == "" {
		return nil, domain.NewValidationError("hgvs", "HGVS notation cannot be empty", input)
	}

	for _, lm := range levelMarkers {
		if !strings.Contains(notation, lm.marker) {
			continue
		}
		for _, p := range patterns[lm.level] {
			m := p.re.FindStringSubmatch(notation)
			if m == nil {
				continue
			}
			expr := &Expression{
				Raw:       notation,
				Reference: m[p.re.SubexpIndex("ref")],
				Level:     lm.level,
				Change:    p.change,
				Start:     m[p.re.SubexpIndex("start")],
			}
			if i := p.re.SubexpIndex("end"); i >= 0 {
				expr.End = m[i]
			}
			return expr, nil
		}
		return nil, domain.NewValidationError("hgvs", "invalid "+string(lm.level)+" HGVS notation format", input)
	}

	return nil, domain.NewValidationError("hgvs", "unrecognized HGVS notation format", input)
}

// Validate reports whether input is a well-formed HGVS expression.
func Validate(input string) error {
	_, err := Parse(input)
	return err
}
