// Package models contains data structures used throughout the application
package models

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReferenceDrug describes a substance with a population baseline half-life
type ReferenceDrug struct {
	Name                  string  `json:"name" yaml:"name"`
	BaselineHalfLifeHours float64 `json:"baselineHalfLifeHours" yaml:"baseline_half_life_hours"`
	Description           string  `json:"description" yaml:"description"`
}

// DrugTable is a read-only lookup of reference drugs keyed case-insensitively
type DrugTable struct {
	drugs map[string]ReferenceDrug
}

// NewDrugTable builds a table from the given drugs. Later entries replace
// earlier ones with the same name.
func NewDrugTable(drugs ...ReferenceDrug) (*DrugTable, error) {
	t := &DrugTable{drugs: make(map[string]ReferenceDrug, len(drugs))}
	for _, d := range drugs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("reference drug without name")
		}
		if !(d.BaselineHalfLifeHours > 0) {
			return nil, fmt.Errorf("reference drug %q: baseline half-life must be positive, got %v", d.Name, d.BaselineHalfLifeHours)
		}
		t.drugs[drugKey(d.Name)] = d
	}
	return t, nil
}

// DefaultDrugTable returns the built-in reference table
func DefaultDrugTable() *DrugTable {
	t, _ := NewDrugTable(
		ReferenceDrug{Name: "Nicotine", BaselineHalfLifeHours: 2.0, Description: "Fast clearing stimulant"},
		ReferenceDrug{Name: "Caffeine", BaselineHalfLifeHours: 5.0, Description: "Common stimulant"},
		ReferenceDrug{Name: "THC", BaselineHalfLifeHours: 30.0, Description: "Fat-soluble, stored in tissue"},
		ReferenceDrug{Name: "Alcohol", BaselineHalfLifeHours: 1.5, Description: "Metabolized by the liver"},
	)
	return t
}

// drugFile is the YAML layout accepted by LoadDrugTable
type drugFile struct {
	Drugs []ReferenceDrug `yaml:"drugs"`
}

// LoadDrugTable reads a YAML drug file and overlays it on the default table
func LoadDrugTable(path string) (*DrugTable, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading drug table: %w", err)
	}

	var f drugFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing drug table: %w", err)
	}

	base := DefaultDrugTable()
	all := make([]ReferenceDrug, 0, base.Len()+len(f.Drugs))
	all = append(all, base.All()...)
	all = append(all, f.Drugs...)

	return NewDrugTable(all...)
}

// Lookup finds a drug by name, ignoring case and surrounding whitespace
func (t *DrugTable) Lookup(name string) (ReferenceDrug, bool) {
	d, ok := t.drugs[drugKey(name)]
	return d, ok
}

// Len returns the number of drugs in the table
func (t *DrugTable) Len() int {
	return len(t.drugs)
}

// All returns every drug sorted by name
func (t *DrugTable) All() []ReferenceDrug {
	out := make([]ReferenceDrug, 0, len(t.drugs))
	for _, d := range t.drugs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns the drug names sorted alphabetically
func (t *DrugTable) Names() []string {
	all := t.All()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}

func drugKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
