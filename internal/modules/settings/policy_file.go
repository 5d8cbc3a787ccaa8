package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk layout of TIMER_POLICY_FILE:
//
//	auto_stop:
//	  hour: 18
//	  minute: 0
//	  enabled: true
//	  timezone: Europe/Lisbon
//	  weekdays_only: true
type policyFile struct {
	AutoStop *TimerSettings `yaml:"auto_stop"`
}

// LoadDefaultsFile reads a YAML policy file and returns the defaults it declares.
// Fields missing from the file keep the values of base.
func LoadDefaultsFile(path string, base TimerSettings) (TimerSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read timer policy file: %w", err)
	}

	seeded := base
	doc := policyFile{AutoStop: &seeded}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return base, fmt.Errorf("failed to parse timer policy file %s: %w", path, err)
	}
	if doc.AutoStop == nil {
		return base, nil
	}
	if err := doc.AutoStop.Validate(); err != nil {
		return base, fmt.Errorf("timer policy file %s: %w", path, err)
	}
	return *doc.AutoStop, nil
}
