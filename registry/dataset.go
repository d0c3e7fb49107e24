// CLAUDE:SUMMARY Static fallback dataset: loading (disk or embedded sample), serial/token lookup, statistics.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed data/registry.sample.json
var sampleDataset []byte

// Dataset is the bundled registry snapshot.
type Dataset struct {
	Info       RegistryInfo `json:"registry_info"`
	Sculptures []Sculpture  `json:"sculptures"`
}

// RegistryInfo holds the snapshot's aggregate counters.
type RegistryInfo struct {
	TotalMinted      int    `json:"total_minted"`
	TotalTransferred int    `json:"total_transferred"`
	LastUpdated      string `json:"last_updated,omitempty"`
}

// ParseDataset decodes a dataset document.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("registry: parse dataset: %w", err)
	}
	return &ds, nil
}

// LoadDataset reads the dataset at path when it exists on disk and falls
// back to the embedded sample otherwise.
func LoadDataset(path string) (*Dataset, string, error) {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			ds, err := ParseDataset(data)
			return ds, path, err
		}
	}
	ds, err := ParseDataset(sampleDataset)
	return ds, "embedded", err
}

var digitsRe = regexp.MustCompile(`^\d+$`)

// Find looks up a normalized query: purely numeric queries are left-padded
// to three digits and matched by serial, anything else is matched against
// token ids case-insensitively. nil means not found.
func (d *Dataset) Find(q string) *Sculpture {
	if d == nil {
		return nil
	}
	if digitsRe.MatchString(q) {
		q = padSerial(q)
		for i := range d.Sculptures {
			if d.Sculptures[i].Serial == q {
				return d.Sculptures[i].clone()
			}
		}
		return nil
	}
	for i := range d.Sculptures {
		if strings.ToLower(d.Sculptures[i].TokenID) == q {
			return d.Sculptures[i].clone()
		}
	}
	return nil
}

// padSerial left-pads a purely numeric query to the three-digit serial
// form; other queries are returned unchanged.
func padSerial(q string) string {
	if digitsRe.MatchString(q) && len(q) < 3 {
		return strings.Repeat("0", 3-len(q)) + q
	}
	return q
}

// Statistics derives aggregates. A nil dataset yields zeros.
func (d *Dataset) Statistics() Statistics {
	if d == nil {
		return Statistics{}
	}
	places := make(map[string]struct{})
	separated := 0
	for _, s := range d.Sculptures {
		if s.Location != "" {
			places[s.Location] = struct{}{}
		}
		if s.PhysicalOwner != "Same" {
			separated++
		}
	}
	minted := d.Info.TotalMinted
	if minted == 0 {
		minted = len(d.Sculptures)
	}
	return Statistics{
		TotalMinted:        minted,
		TotalTransfers:     d.Info.TotalTransferred,
		SeparatedOwnership: separated,
		Countries:          len(places),
	}
}
