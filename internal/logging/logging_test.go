package logging_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/logging"
)

func TestNewParsesLevel(t *testing.T) {
	log := logging.New("debug", "json")
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	log := logging.New("chatty", "console")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
