// Package tuning loads gameplay tuning that settlement reads in dynamic
// distance mode.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Trade TradeTuning `yaml:"trade"`
}

type TradeTuning struct {
	SearchHorizontal float64 `yaml:"search_horizontal"`
	SearchVertical   float64 `yaml:"search_vertical"`
	MaxContainers    int     `yaml:"max_containers"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Trade.SearchHorizontal < 0 || t.Trade.SearchVertical < 0 || t.Trade.MaxContainers < 0 {
		return t, fmt.Errorf("tuning.yaml: trade search values must not be negative")
	}
	return t, nil
}
