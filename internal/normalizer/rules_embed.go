package normalizer

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed data/rules.yaml
var rulesYAML []byte

// RulesConfig holds the normalization tables loaded from the embedded YAML.
type RulesConfig struct {
	StreetTypes   map[string]string `yaml:"street_types"`
	Directionals  map[string]string `yaml:"directionals"`
	Connectors    []string          `yaml:"connectors"`
	Provinces     map[string]string `yaml:"provinces"` // code -> full name (lowercase)
	States        map[string]string `yaml:"states"`
	CountryTokens map[string]string `yaml:"country_tokens"` // token -> CA/US
}

// LoadRulesConfig loads the rule tables from the embedded YAML file.
func LoadRulesConfig() (*RulesConfig, error) {
	config := &RulesConfig{}
	if err := yaml.Unmarshal(rulesYAML, config); err != nil {
		return nil, err
	}
	return config, nil
}
