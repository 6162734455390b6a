// Package catalog holds the detection rules: PII patterns, threat keywords
// and known-suspicious domains. A compiled Catalog is immutable and safe to
// share between concurrent analyses.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"threatscope/internal/domain"
)

// Rule is a named PII pattern as written in a catalog file.
type Rule struct {
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`
}

// Definition is the uncompiled catalog, the shape of the YAML file.
type Definition struct {
	PII      []Rule   `yaml:"pii"`
	Keywords []string `yaml:"keywords"`
	Domains  []string `yaml:"domains"`
}

// DefaultDefinition returns the built-in rules.
func DefaultDefinition() Definition {
	return Definition{
		PII: []Rule{
			{Category: string(domain.CategoryEmails), Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`},
			{Category: string(domain.CategoryPhones), Pattern: `\b\d{10,12}\b`},
			{Category: string(domain.CategoryCreditCards), Pattern: `\b(?:\d[ -]*?){13,16}\b`},
		},
		Keywords: []string{"malware", "hacked", "ransomware", "carding", "breach", "leaked", "exploit", "phishing", "stealer"},
		Domains:  []string{"pastebin.com", "anonfiles.com", "darkwebmarket", "tor2web", "leakeddata"},
	}
}

type pattern struct {
	category domain.Category
	re       *regexp.Regexp
}

// Catalog is the compiled form of a Definition.
type Catalog struct {
	patterns []pattern
	keywords []string
	domains  []string
}

// Default compiles DefaultDefinition. The built-in patterns are known to compile.
func Default() *Catalog {
	c, err := Compile(DefaultDefinition())
	if err != nil {
		panic(err)
	}
	return c
}

// Compile validates and compiles a Definition. Keywords and domains are lower-cased
// and de-duplicated keeping their first position.
func Compile(s Definition) (*Catalog, error) {
	c := &Catalog{}
	seen := map[string]bool{}
	for _, r := range s.PII {
		name := strings.TrimSpace(r.Category)
		if name == "" {
			return nil, errors.New("pii rule without category")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate pii category %q", name)
		}
		seen[name] = true
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pii category %q: %w", name, err)
		}
		c.patterns = append(c.patterns, pattern{category: domain.Category(name), re: re})
	}
	c.keywords = normalizeTerms(s.Keywords)
	c.domains = normalizeTerms(s.Domains)
	return c, nil
}

// Load reads a YAML catalog file. Sections left empty in the file fall back
// to the built-in defaults.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Definition
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	def := DefaultDefinition()
	if len(s.PII) == 0 {
		s.PII = def.PII
	}
	if len(s.Keywords) == 0 {
		s.Keywords = def.Keywords
	}
	if len(s.Domains) == 0 {
		s.Domains = def.Domains
	}
	return Compile(s)
}

// Categories returns PII categories in evaluation order.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, len(c.patterns))
	for i, p := range c.patterns {
		out[i] = p.category
	}
	return out
}

// Pattern returns the compiled expression for a category.
func (c *Catalog) Pattern(cat domain.Category) (*regexp.Regexp, bool) {
	for _, p := range c.patterns {
		if p.category == cat {
			return p.re, true
		}
	}
	return nil, false
}

func (c *Catalog) Keywords() []string { return append([]string(nil), c.keywords...) }

func (c *Catalog) Domains() []string { return append([]string(nil), c.domains...) }

func normalizeTerms(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
