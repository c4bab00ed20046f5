// Package tuning lets an operator adjust indicator weights, thresholds, and
// the suspicious-extension / temp-directory-marker sets without a rebuild,
// via a YAML overrides file. It generalizes the condition-override model
// kubesentinel used for its Kubernetes manifest rule checks onto tuning the
// fixed ransomware-detection formulas in internal/pattern and
// internal/scoring.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides is the top-level shape of a tuning YAML file. Any field left
// nil/empty keeps its compiled-in default.
type Overrides struct {
	Weights struct {
		MassModification      *int `yaml:"mass_modification"`
		EntropySpike          *int `yaml:"entropy_spike"`
		ExtensionManipulation *int `yaml:"extension_manipulation"`
		DirectoryTraversal    *int `yaml:"directory_traversal"`
		SuspiciousProcess     *int `yaml:"suspicious_process"`
		DeletionPattern       *int `yaml:"deletion_pattern"`
	} `yaml:"weights"`

	Thresholds struct {
		MassModificationCount *int     `yaml:"mass_modification_count"`
		EntropySpikeCount     *int     `yaml:"entropy_spike_count"`
		EntropyDelta          *float64 `yaml:"entropy_delta"`
		DirectoryCount        *int     `yaml:"directory_count"`
		ExtensionRenameCount  *int     `yaml:"extension_rename_count"`
	} `yaml:"thresholds"`

	SuspiciousExtensions []string `yaml:"suspicious_extensions,omitempty"`
	TempDirMarkers       []string `yaml:"temp_dir_markers,omitempty"`
}

// Load parses a tuning overrides file. A missing file is not an error —
// it means "use the compiled-in defaults" — and Load returns a zero-value
// Overrides in that case.
func Load(path string) (Overrides, error) {
	var o Overrides
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return o, nil
	}
	if err != nil {
		return o, fmt.Errorf("read tuning overrides %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parse tuning overrides %s: %w", path, err)
	}
	return o, nil
}
