package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Provider(t *testing.T) {
	t.Run("API_KEY sets key", func(t *testing.T) {
		clearKeys(t)
		t.Setenv("API_KEY", "generic")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "generic", cfg.Provider.APIKey)
	})

	t.Run("GEMINI_API_KEY wins over API_KEY", func(t *testing.T) {
		clearKeys(t)
		t.Setenv("API_KEY", "generic")
		t.Setenv("GEMINI_API_KEY", "gemini")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.Provider.APIKey)
	})

	t.Run("empty env keeps file value", func(t *testing.T) {
		clearKeys(t)

		cfg := &Config{Provider: ProviderConfig{APIKey: "from-file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.Provider.APIKey)
	})
}

func TestEnvOverrides_StoreAndLogging(t *testing.T) {
	clearKeys(t)
	t.Setenv("FAST3R_DB", "/tmp/x.db")
	t.Setenv("FAST3R_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/x.db", cfg.Store.DatabasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
