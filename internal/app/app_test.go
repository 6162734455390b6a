package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatscope/internal/config"
)

func baseConfig() config.Config {
	return config.Config{
		TorProxyURL:    "socks5h://127.0.0.1:9050",
		FetchTimeout:   time.Second,
		FetchMaxBytes:  1 << 20,
		FetchUserAgent: "Mozilla/5.0",
		OverlayMarker:  ".onion",
		ScoringPolicy:  "weighted",
	}
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBuildWithoutPersistence(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(), quiet(), Options{})
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Analyzer)
	assert.Nil(t, a.History)
	assert.Nil(t, a.DB)
	assert.NotNil(t, a.Metrics)
}

func TestBuildRejectsUnknownPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.ScoringPolicy = "gut-feeling"
	_, err := Build(context.Background(), cfg, quiet(), Options{})
	assert.Error(t, err)
}

func TestBuildRejectsBadProxy(t *testing.T) {
	cfg := baseConfig()
	cfg.TorProxyURL = "http://127.0.0.1:8118"
	_, err := Build(context.Background(), cfg, quiet(), Options{})
	assert.Error(t, err)
}

func TestBuildLoadsCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [wiper]\n"), 0o600))
	cfg := baseConfig()
	cfg.CatalogPath = path

	a, err := Build(context.Background(), cfg, quiet(), Options{})
	require.NoError(t, err)
	a.Close()

	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, quiet(), Options{})
	assert.Error(t, err)
}
