/*
profiles.go - Profile database loading

PURPOSE:
  Loads the three id-keyed profile databases: clients, banks, and the
  sender's own profiles (including the LUT order-number history). Profiles
  stay as maps until the resolution boundary, where the merged
  profile+override map is turned into a typed entity exactly once.
*/
package invoice

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LUTOrder tracks the sender's Letter of Undertaking numbers: the current
// one plus per-fiscal-year history keyed "fy24-25".
type LUTOrder struct {
	Current string            `yaml:"current"`
	History map[string]string `yaml:"history"`
}

// SelfProfile is the decoded self.yaml: sender profiles keyed by id, plus
// LUT bookkeeping.
type SelfProfile struct {
	Profiles       map[string]map[string]interface{} `yaml:"profiles"`
	LUTOrderNumber LUTOrder                          `yaml:"lut_order_number"`
}

// Profiles bundles all three profile databases.
type Profiles struct {
	Clients map[string]map[string]interface{}
	Banks   map[string]map[string]interface{}
	Self    SelfProfile
}

// LoadProfiles reads clients.yaml, banks.yaml and self.yaml from dir.
func LoadProfiles(dir string) (*Profiles, error) {
	p := &Profiles{}

	if err := loadYAML(filepath.Join(dir, "clients.yaml"), &p.Clients); err != nil {
		return nil, fmt.Errorf("client profiles: %w", err)
	}
	if err := loadYAML(filepath.Join(dir, "banks.yaml"), &p.Banks); err != nil {
		return nil, fmt.Errorf("bank profiles: %w", err)
	}
	if err := loadYAML(filepath.Join(dir, "self.yaml"), &p.Self); err != nil {
		return nil, fmt.Errorf("self profile: %w", err)
	}

	if p.Clients == nil {
		p.Clients = map[string]map[string]interface{}{}
	}
	if p.Banks == nil {
		p.Banks = map[string]map[string]interface{}{}
	}
	if p.Self.Profiles == nil {
		p.Self.Profiles = map[string]map[string]interface{}{}
	}
	return p, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
