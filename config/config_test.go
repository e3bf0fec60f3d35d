package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "credits.db", cfg.Database.Path)
	assert.Equal(t, "expiring", cfg.Credit.DefaultType)
	assert.Equal(t, "gift-card", cfg.Credit.GiftCardCategory)
	assert.Len(t, cfg.Credit.Types, 2)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[database]
path = "/tmp/test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	// Untouched sections keep their defaults
	assert.Equal(t, "expiring", cfg.Credit.DefaultType)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, `this is not toml = = =`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUndefinedDefaultType(t *testing.T) {
	path := writeConfig(t, `
[credit]
default_type = "bonus"
gift_card_category = "gift-card"

[[credit.types]]
id = "expiring"
name = "Expiring"
priority = 1

[[credit.categories]]
id = "gift-card"
name = "Gift Card"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bonus")
}

func TestLoad_RejectsUndefinedGiftCardCategory(t *testing.T) {
	path := writeConfig(t, `
[credit]
default_type = "expiring"
gift_card_category = "promo"

[[credit.types]]
id = "expiring"
name = "Expiring"
priority = 1

[[credit.categories]]
id = "gift-card"
name = "Gift Card"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promo")
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 70000
`)

	_, err := Load(path)
	assert.Error(t, err)
}
