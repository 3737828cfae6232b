// Package catalog loads the source catalog: which external series are
// ingested, where each one comes from, and which fact table it lands
// in.
package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SourceKind names the upstream a series is fetched from.
type SourceKind string

const (
	// KindBCB fetches from the Banco Central SGS time-series API.
	KindBCB SourceKind = "bcb"
	// KindCBIC downloads an XLSX workbook published by CBIC.
	KindCBIC SourceKind = "cbic"
)

// Catalog is the full set of configured sources.
type Catalog struct {
	Sources []Source `yaml:"sources"`
}

// Source describes one ingested series and its destination table.
type Source struct {
	ID          string            `yaml:"id"`
	Kind        SourceKind        `yaml:"kind"`
	Table       string            `yaml:"table"`
	SeriesID    string            `yaml:"series_id"`
	Dimensions  map[string]string `yaml:"dimensions,omitempty"`
	NonNegative bool              `yaml:"non_negative"`

	// BCB-specific: the SGS numeric series code.
	BCBCode int `yaml:"bcb_code,omitempty"`

	// CBIC-specific: parameters of the published workbook file name,
	// tabela_{table_id}_{file_type}_{file_number}.xlsx.
	CBIC *CBICSource `yaml:"cbic,omitempty"`
}

// CBICSource identifies a CBIC workbook and the sheet holding the
// series data.
type CBICSource struct {
	TableID    string `yaml:"table_id"`
	FileType   string `yaml:"file_type"`
	FileNumber int    `yaml:"file_number"`
	Sheet      string `yaml:"sheet,omitempty"`
}

// Load reads and validates a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	for i, s := range c.Sources {
		if s.ID == "" {
			return eris.Errorf("catalog: source %d has no id", i)
		}
		if seen[s.ID] {
			return eris.Errorf("catalog: duplicate source id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Table == "" || s.SeriesID == "" {
			return eris.Errorf("catalog: source %q needs table and series_id", s.ID)
		}
		switch s.Kind {
		case KindBCB:
			if s.BCBCode <= 0 {
				return eris.Errorf("catalog: source %q needs a positive bcb_code", s.ID)
			}
		case KindCBIC:
			if s.CBIC == nil || s.CBIC.TableID == "" || s.CBIC.FileType == "" || s.CBIC.FileNumber <= 0 {
				return eris.Errorf("catalog: source %q needs cbic table_id, file_type and file_number", s.ID)
			}
		default:
			return eris.Errorf("catalog: source %q has unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}

// ByID returns the source with the given id, or nil.
func (c *Catalog) ByID(id string) *Source {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// Tables returns the distinct destination tables in catalog order.
func (c *Catalog) Tables() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range c.Sources {
		if !seen[s.Table] {
			seen[s.Table] = true
			out = append(out, s.Table)
		}
	}
	return out
}

// NonNegativeSeries returns the series ids declared non-negative,
// keyed for quality checks.
func (c *Catalog) NonNegativeSeries() map[string]bool {
	out := map[string]bool{}
	for _, s := range c.Sources {
		if s.NonNegative {
			out[s.SeriesID] = true
		}
	}
	return out
}
