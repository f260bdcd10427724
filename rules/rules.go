// Package rules loads level tables and achievement catalogs from YAML rule
// packs. A pack may override one or both tracks; anything it leaves out keeps
// the built-in defaults.
//
//	buyer:
//	  levels:
//	    - name: Bronze
//	      min_points: 0
//	      max_points_exclusive: 1000
//	    - name: Argent
//	      min_points: 1000
//	seller:
//	  achievements:
//	    - id: first_sale
//	      title: Première vente
//	      target: 1
//	      reward: 50
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"loyaltykit/core"
)

// ErrInvalidPack is returned for packs that parse but do not validate.
var ErrInvalidPack = errors.New("invalid rule pack")

type trackRules struct {
	Levels       core.LevelTable `yaml:"levels"`
	Achievements core.Catalog    `yaml:"achievements"`
}

type pack struct {
	Buyer  *trackRules `yaml:"buyer"`
	Seller *trackRules `yaml:"seller"`
}

// Load reads a rule pack from path. An empty path returns the defaults.
func Load(path string) (core.Ruleset, error) {
	if path == "" {
		return core.DefaultRuleset(), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - operator supplied
	if err != nil {
		return core.Ruleset{}, fmt.Errorf("read rule pack: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return core.Ruleset{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes a YAML rule pack. Unknown keys are rejected.
func Parse(data []byte) (core.Ruleset, error) {
	var p pack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return core.Ruleset{}, fmt.Errorf("decode rule pack: %w", err)
	}

	rs := core.DefaultRuleset()
	apply(&rs, core.TrackBuyer, p.Buyer)
	apply(&rs, core.TrackSeller, p.Seller)
	if err := rs.Validate(); err != nil {
		return core.Ruleset{}, fmt.Errorf("%w: %w", ErrInvalidPack, err)
	}
	return rs, nil
}

func apply(rs *core.Ruleset, t core.Track, tr *trackRules) {
	if tr == nil {
		return
	}
	if tr.Levels != nil {
		rs.Levels[t] = tr.Levels
	}
	if tr.Achievements != nil {
		catalog := make(core.Catalog, len(tr.Achievements))
		for i, a := range tr.Achievements {
			a.Track = t
			catalog[i] = a
		}
		rs.Achievements[t] = catalog
	}
}
