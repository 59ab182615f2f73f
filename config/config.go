/*
Package config loads the engine's configuration into one explicit value.

PURPOSE:
  Everything the engine needs to know about its environment - directory
  layout, business rules, billing formulas - is loaded ONCE per run into a
  Config value that is threaded through every component's constructor.
  There is no process-wide singleton and no implicit global state.

LAYOUT (relative to the data root):
  data/
    profiles/      clients.yaml, banks.yaml, self.yaml
    contracts/     *.yaml reusable engagement templates
    invoices/      *.yaml per-invoice specifications
    assets/        logos and signatures (referenced by basename)
    invoice_registry.json
    archive.db     generated-invoice summaries (SQLite)
  config/
    business_rules.yaml   GST rates, threshold date, state map, defaults
    billing.yaml          pricing_formulas and invoice_presets
  output/

SEE ALSO:
  - rules.go: business_rules.yaml schema
  - billing.ParseConfig: billing.yaml schema
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/warp/invoice-engine/billing"
)

// Config is the explicit configuration value for one run.
type Config struct {
	RootDir string

	DataDir      string
	ConfigDir    string
	OutputDir    string
	ProfilesDir  string
	ContractsDir string
	InvoicesDir  string
	AssetsDir    string

	RegistryPath string
	ArchivePath  string

	Rules   BusinessRules
	Billing billing.Config
}

// Load resolves the directory layout under rootDir and reads both
// configuration files.
func Load(rootDir string) (*Config, error) {
	cfg := &Config{RootDir: rootDir}
	cfg.DataDir = filepath.Join(rootDir, "data")
	cfg.ConfigDir = filepath.Join(rootDir, "config")
	cfg.OutputDir = filepath.Join(rootDir, "output")
	cfg.ProfilesDir = filepath.Join(cfg.DataDir, "profiles")
	cfg.ContractsDir = filepath.Join(cfg.DataDir, "contracts")
	cfg.InvoicesDir = filepath.Join(cfg.DataDir, "invoices")
	cfg.AssetsDir = filepath.Join(cfg.DataDir, "assets")
	cfg.RegistryPath = filepath.Join(cfg.DataDir, "invoice_registry.json")
	cfg.ArchivePath = filepath.Join(cfg.DataDir, "archive.db")

	rulesRaw, err := os.ReadFile(filepath.Join(cfg.ConfigDir, "business_rules.yaml"))
	if err != nil {
		return nil, fmt.Errorf("business rules: %w", err)
	}
	cfg.Rules, err = ParseBusinessRules(rulesRaw)
	if err != nil {
		return nil, err
	}

	billingRaw, err := os.ReadFile(filepath.Join(cfg.ConfigDir, "billing.yaml"))
	if err != nil {
		return nil, fmt.Errorf("billing config: %w", err)
	}
	cfg.Billing, err = billing.ParseConfig(billingRaw)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
