// Package catalogue loads and validates the character catalogue once at
// startup and exposes an immutable, concurrency-safe handle thereafter
// (§4.1). The source file format that produces the catalogue's input is
// an external collaborator (§1); this package only cares about the
// in-memory []model.Character shape.
package catalogue

import (
	"fmt"
	"sort"

	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

// Catalogue is immutable after New returns successfully.
type Catalogue struct {
	byID    map[model.CharacterID]model.Character
	ordered []model.CharacterID
}

// New validates entries and builds an immutable catalogue. Validation
// failures are fatal-at-startup per §7 ("invalid character catalogue").
func New(characters []model.Character) (*Catalogue, error) {
	byID := make(map[model.CharacterID]model.Character, len(characters))
	ordered := make([]model.CharacterID, 0, len(characters))

	for _, c := range characters {
		if c.ID == "" {
			return nil, fmt.Errorf("catalogue: character has empty id (name %q)", c.Name)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("catalogue: duplicate character id %q", c.ID)
		}
		if c.Complexity < 1 || c.Complexity > 5 {
			return nil, fmt.Errorf("catalogue: character %q has out-of-range complexity %d", c.ID, c.Complexity)
		}
		if !validTeam(c.Team) {
			return nil, fmt.Errorf("catalogue: character %q has invalid team colour %v", c.ID, c.Team)
		}
		byID[c.ID] = c
		ordered = append(ordered, c.ID)
	}

	for _, c := range byID {
		for _, req := range c.Requires {
			if _, ok := byID[req]; !ok {
				return nil, fmt.Errorf("catalogue: character %q requires unknown id %q", c.ID, req)
			}
		}
		for _, ex := range c.MutuallyExclusive {
			if _, ok := byID[ex]; !ok {
				return nil, fmt.Errorf("catalogue: character %q excludes unknown id %q", c.ID, ex)
			}
		}
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	return &Catalogue{byID: byID, ordered: ordered}, nil
}

func validTeam(t model.TeamColor) bool {
	return t >= model.TeamBlue && t <= model.TeamPink
}

// Lookup returns a character by id.
func (c *Catalogue) Lookup(id model.CharacterID) (model.Character, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// All returns every character in stable (sorted-by-id) order.
func (c *Catalogue) All() []model.Character {
	out := make([]model.Character, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.byID[id])
	}
	return out
}

// FilterByTeam returns every character with the given team colour.
func (c *Catalogue) FilterByTeam(team model.TeamColor) []model.Character {
	var out []model.Character
	for _, id := range c.ordered {
		if ch := c.byID[id]; ch.Team == team {
			out = append(out, ch)
		}
	}
	return out
}

// FilterByMaxComplexity returns every character at or below the given
// complexity.
func (c *Catalogue) FilterByMaxComplexity(max int) []model.Character {
	var out []model.Character
	for _, id := range c.ordered {
		if ch := c.byID[id]; ch.Complexity <= max {
			out = append(out, ch)
		}
	}
	return out
}

// PrimaryIDs returns every catalogue entry whose class is PRIMARY, sorted
// by id. This is the data-driven replacement for the source's two
// hard-coded string ids (§9, §4.3).
func (c *Catalogue) PrimaryIDs() []model.CharacterID {
	var out []model.CharacterID
	for _, id := range c.ordered {
		if c.byID[id].Class == model.ClassPrimary {
			out = append(out, id)
		}
	}
	return out
}

// Size returns the number of catalogue entries.
func (c *Catalogue) Size() int {
	return len(c.ordered)
}
