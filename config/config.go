/*
Package config loads the server configuration.

PURPOSE:
  Everything the process needs that is policy rather than code lives in
  one TOML file: HTTP settings, database path, and the credit type /
  category definitions seeded at startup. In particular the DEFAULT
  CREDIT TYPE is configuration injected into the ledger, not a
  process-wide registry lookup.

EXAMPLE (config.toml):

  [server]
  host = "0.0.0.0"
  port = 8080
  allowed_origins = ["http://localhost:5173"]

  [database]
  path = "./data/credits.db"

  [credit]
  default_type = "expiring"
  gift_card_category = "gift-card"

  [[credit.types]]
  id = "expiring"
  name = "Expiring"
  priority = 1

  [[credit.types]]
  id = "non-expiring"
  name = "Non-expiring"
  priority = 2

  [[credit.categories]]
  id = "gift-card"
  name = "Gift Card"

Missing file means defaults; flags and environment override in main.
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Credit   Credit   `toml:"credit"`
}

type Server struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Database struct {
	Path string `toml:"path"`
}

type Credit struct {
	// DefaultType is the credit type applied to grants that do not
	// name one.
	DefaultType string `toml:"default_type"`

	// GiftCardCategory is the category assigned to credits allocated
	// by gift card redemptions.
	GiftCardCategory string `toml:"gift_card_category"`

	Types      []CreditType `toml:"types"`
	Categories []Category   `toml:"categories"`
}

type CreditType struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Priority int    `toml:"priority"`
}

type Category struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: Server{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: Database{Path: "credits.db"},
		Credit: Credit{
			DefaultType:      "expiring",
			GiftCardCategory: "gift-card",
			Types: []CreditType{
				{ID: "expiring", Name: "Expiring", Priority: 1},
				{ID: "non-expiring", Name: "Non-expiring", Priority: 2},
			},
			Categories: []Category{
				{ID: "gift-card", Name: "Gift Card"},
				{ID: "admin-grant", Name: "Admin Grant"},
			},
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Credit.DefaultType != "" && !c.hasType(c.Credit.DefaultType) {
		return fmt.Errorf("default credit type %q is not defined", c.Credit.DefaultType)
	}
	if c.Credit.GiftCardCategory != "" && !c.hasCategory(c.Credit.GiftCardCategory) {
		return fmt.Errorf("gift card category %q is not defined", c.Credit.GiftCardCategory)
	}
	return nil
}

func (c Config) hasType(id string) bool {
	for _, t := range c.Credit.Types {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (c Config) hasCategory(id string) bool {
	for _, cat := range c.Credit.Categories {
		if cat.ID == id {
			return true
		}
	}
	return false
}
