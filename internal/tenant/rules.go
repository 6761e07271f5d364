package tenant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules reads a YAML rule file of the form
//
//	root_domains: [buildarclabs.in, cofounds.in]
//	reserved: [www, api]
//
// A list omitted from the file keeps its compiled-in default.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading tenant rules: %w", err)
	}

	var fileRules Rules
	if err := yaml.Unmarshal(data, &fileRules); err != nil {
		return Rules{}, fmt.Errorf("parsing tenant rules %s: %w", path, err)
	}

	rules := DefaultRules()
	if fileRules.RootDomains != nil {
		rules.RootDomains = fileRules.RootDomains
	}
	if fileRules.Reserved != nil {
		rules.Reserved = fileRules.Reserved
	}
	return rules, nil
}
