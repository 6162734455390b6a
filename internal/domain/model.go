package domain

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Core domain models shared by the pipeline, the sinks and the read side.
// Every value here is created once per run and never mutated afterwards.

// DefaultOverlayMarker identifies addresses served through the anonymizing overlay.
const DefaultOverlayMarker = ".onion"

type Transport string

const (
	TransportDirect  Transport = "direct"
	TransportOverlay Transport = "overlay"
)

// TargetAddress is the caller-provided address, kept verbatim.
type TargetAddress string

// Transport classifies the address using the default overlay marker.
func (a TargetAddress) Transport() Transport { return a.TransportFor(DefaultOverlayMarker) }

// TransportFor classifies the address against a custom overlay marker.
func (a TargetAddress) TransportFor(marker string) Transport {
	if marker != "" && strings.Contains(strings.ToLower(string(a)), strings.ToLower(marker)) {
		return TransportOverlay
	}
	return TransportDirect
}

// Plaintext reports whether the address uses the unencrypted http scheme.
func (a TargetAddress) Plaintext() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(string(a))), "http://")
}

// RegistrableDomain returns the eTLD+1 of the address host, or the bare host
// when the public suffix list has no answer. Used for grouping on the read side.
func (a TargetAddress) RegistrableDomain() string {
	u, err := url.Parse(strings.TrimSpace(string(a)))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

func (a TargetAddress) String() string { return string(a) }

type Category string

const (
	CategoryEmails      Category = "Emails"
	CategoryPhones      Category = "Phone Numbers"
	CategoryCreditCards Category = "Credit Cards"
)

type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Tiers lists every tier from least to most severe.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

type ScrapeRecord struct {
	RunID      string        `json:"run_id"`
	Address    TargetAddress `json:"address"`
	RawText    string        `json:"raw_text"`
	CapturedAt time.Time     `json:"captured_at"`
}

// DetectionResult holds every match found in one text.
// PII matches keep first-seen order and duplicates; keywords and domains
// appear at most once, in catalog order.
type DetectionResult struct {
	PII      map[Category][]string `json:"pii"`
	Keywords []string              `json:"keywords"`
	Domains  []string              `json:"domains"`
}

// Count returns the number of matches for a PII category.
func (d DetectionResult) Count(c Category) int { return len(d.PII[c]) }

// Empty reports whether nothing at all was detected.
func (d DetectionResult) Empty() bool {
	for _, matches := range d.PII {
		if len(matches) > 0 {
			return false
		}
	}
	return len(d.Keywords) == 0 && len(d.Domains) == 0
}

type SeverityAssessment struct {
	Score  int    `json:"score"`
	Tier   Tier   `json:"tier"`
	Policy string `json:"policy"`
}

type AnalysisRecord struct {
	RunID      string             `json:"run_id"`
	Address    TargetAddress      `json:"address"`
	Transport  Transport          `json:"transport"`
	Detection  DetectionResult    `json:"detection"`
	Severity   SeverityAssessment `json:"severity"`
	AnalyzedAt time.Time          `json:"analyzed_at"`
}

// Report is what interactive callers get back: the analysis plus an optional narrative.
type Report struct {
	Record  AnalysisRecord `json:"analysis"`
	Insight string         `json:"insight,omitempty"`
}

const (
	IndicatorCategoryPII     = "PII"
	IndicatorCategoryMalware = "Malware/Phishing"
	IndicatorTypeSuspicious  = "Suspicious Link"
)

// ThreatIndicator is one matched PII value or suspicious domain.
type ThreatIndicator struct {
	RunID      string        `json:"run_id"`
	Address    TargetAddress `json:"address"`
	Type       string        `json:"type"`
	Value      string        `json:"value"`
	Category   string        `json:"category"`
	DetectedAt time.Time     `json:"detected_at"`
}

// Indicators flattens a record into one entry per PII value and suspicious domain.
func (r AnalysisRecord) Indicators(order []Category) []ThreatIndicator {
	var out []ThreatIndicator
	for _, cat := range order {
		for _, v := range r.Detection.PII[cat] {
			out = append(out, ThreatIndicator{
				RunID: r.RunID, Address: r.Address, Type: string(cat), Value: v,
				Category: IndicatorCategoryPII, DetectedAt: r.AnalyzedAt,
			})
		}
	}
	for _, d := range r.Detection.Domains {
		out = append(out, ThreatIndicator{
			RunID: r.RunID, Address: r.Address, Type: IndicatorTypeSuspicious, Value: d,
			Category: IndicatorCategoryMalware, DetectedAt: r.AnalyzedAt,
		})
	}
	return out
}

// DashboardMetrics is the per-run count summary read by dashboards.
type DashboardMetrics struct {
	RunID           string        `json:"run_id"`
	Address         TargetAddress `json:"address"`
	EmailCount      int           `json:"email_count"`
	PhoneCount      int           `json:"phone_count"`
	CreditCardCount int           `json:"credit_card_count"`
	KeywordCount    int           `json:"keyword_count"`
	DomainCount     int           `json:"domain_count"`
	SeverityScore   int           `json:"severity_score"`
}

func (r AnalysisRecord) Metrics() DashboardMetrics {
	return DashboardMetrics{
		RunID:           r.RunID,
		Address:         r.Address,
		EmailCount:      r.Detection.Count(CategoryEmails),
		PhoneCount:      r.Detection.Count(CategoryPhones),
		CreditCardCount: r.Detection.Count(CategoryCreditCards),
		KeywordCount:    len(r.Detection.Keywords),
		DomainCount:     len(r.Detection.Domains),
		SeverityScore:   r.Severity.Score,
	}
}

// StoredAnalysis is an analysis as read back from storage.
type StoredAnalysis struct {
	ID                string
	RegistrableDomain string
	Record            AnalysisRecord
}
