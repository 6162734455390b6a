package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetAddressTransport(t *testing.T) {
	cases := map[TargetAddress]Transport{
		"http://yq5jjvr7drkjrelzhut7kgclfuro65jjlivyzfmxiq2kyv5lickrl4qd.onion/": TransportOverlay,
		"HTTP://EXAMPLE.ONION/index":  TransportOverlay,
		"https://example.com":         TransportDirect,
		"https://onion.example.com/":  TransportDirect,
		"":                            TransportDirect,
	}
	for addr, want := range cases {
		assert.Equal(t, want, addr.Transport(), "address %q", addr)
	}
}

func TestTargetAddressTransportForCustomMarker(t *testing.T) {
	addr := TargetAddress("http://service.i2p/")
	assert.Equal(t, TransportDirect, addr.Transport())
	assert.Equal(t, TransportOverlay, addr.TransportFor(".i2p"))
	assert.Equal(t, TransportDirect, addr.TransportFor(""))
}

func TestTargetAddressPlaintext(t *testing.T) {
	assert.True(t, TargetAddress("http://example.com").Plaintext())
	assert.True(t, TargetAddress("  HTTP://example.com").Plaintext())
	assert.False(t, TargetAddress("https://example.com").Plaintext())
	assert.False(t, TargetAddress("https://example.com/?next=http://x").Plaintext())
	assert.False(t, TargetAddress("example.com").Plaintext())
}

func TestTargetAddressRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", TargetAddress("https://www.example.com/a?b=c").RegistrableDomain())
	assert.Equal(t, "example.co.uk", TargetAddress("http://shop.example.co.uk").RegistrableDomain())
	assert.Equal(t, "localhost", TargetAddress("http://localhost:8080/").RegistrableDomain())
	assert.Equal(t, "", TargetAddress("not a url").RegistrableDomain())
}

func TestAnalysisRecordIndicatorsAndMetrics(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := AnalysisRecord{
		RunID:   "run-1",
		Address: "https://leak.example",
		Detection: DetectionResult{
			PII: map[Category][]string{
				CategoryEmails: {"a@b.com", "a@b.com"},
				CategoryPhones: {"1234567890"},
			},
			Keywords: []string{"leaked"},
			Domains:  []string{"pastebin.com"},
		},
		Severity:   SeverityAssessment{Score: 10, Tier: TierHigh},
		AnalyzedAt: at,
	}

	inds := rec.Indicators([]Category{CategoryEmails, CategoryPhones, CategoryCreditCards})
	require.Len(t, inds, 4)
	assert.Equal(t, "Emails", inds[0].Type)
	assert.Equal(t, IndicatorCategoryPII, inds[1].Category)
	assert.Equal(t, "1234567890", inds[2].Value)
	assert.Equal(t, IndicatorTypeSuspicious, inds[3].Type)
	assert.Equal(t, IndicatorCategoryMalware, inds[3].Category)
	assert.Equal(t, at, inds[3].DetectedAt)

	m := rec.Metrics()
	assert.Equal(t, 2, m.EmailCount)
	assert.Equal(t, 1, m.PhoneCount)
	assert.Equal(t, 0, m.CreditCardCount)
	assert.Equal(t, 1, m.KeywordCount)
	assert.Equal(t, 1, m.DomainCount)
	assert.Equal(t, 10, m.SeverityScore)
}

func TestDetectionResultEmpty(t *testing.T) {
	assert.True(t, DetectionResult{}.Empty())
	assert.True(t, DetectionResult{PII: map[Category][]string{CategoryEmails: nil}}.Empty())
	assert.False(t, DetectionResult{Domains: []string{"tor2web"}}.Empty())
}
