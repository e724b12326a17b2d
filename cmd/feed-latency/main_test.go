package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/betbot/feedlatency/pkg/config"
)

func TestRunDir(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "out"
	cfg.Symbol = "ETH"

	now := time.Date(2025, 12, 18, 9, 5, 7, 0, time.Local)
	assert.Equal(t, filepath.Join("out", "ETH_20251218_090507"), runDir(cfg, now))
}
