package detector

import (
	"strings"

	"threatscope/internal/catalog"
	"threatscope/internal/domain"
)

// Detector applies a Catalog to plain text. It holds no mutable state.
type Detector struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Detector {
	if c == nil {
		c = catalog.Default()
	}
	return &Detector{catalog: c}
}

func (d *Detector) Catalog() *catalog.Catalog { return d.catalog }

// Detect collects every non-overlapping PII match per category, in order and
// with duplicates, plus each keyword and domain that occurs at least once.
func (d *Detector) Detect(text string) domain.DetectionResult {
	res := domain.DetectionResult{PII: make(map[domain.Category][]string)}
	for _, cat := range d.catalog.Categories() {
		re, _ := d.catalog.Pattern(cat)
		matches := re.FindAllString(text, -1)
		if matches == nil {
			matches = []string{}
		}
		res.PII[cat] = matches
	}

	lower := strings.ToLower(text)
	res.Keywords = containedTerms(lower, d.catalog.Keywords())
	res.Domains = containedTerms(lower, d.catalog.Domains())
	return res
}

func containedTerms(lower string, terms []string) []string {
	out := []string{}
	for _, t := range terms {
		if strings.Contains(lower, t) {
			out = append(out, t)
		}
	}
	return out
}
