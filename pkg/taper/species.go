// Package taper defines the per-species stem profile capability consumed by
// the volume table engine, the species identifiers it is keyed by, and the
// scaling limits that govern how a stem is bucked and graded.
package taper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Species identifies a tree species by its FIA plant code.
type Species string

const (
	DouglasFir      Species = "PSME"
	WesternHemlock  Species = "TSHE"
	WesternRedcedar Species = "THPL"
	RedAlder        Species = "ALRU2"
	BigleafMaple    Species = "ACMA3"
	PacificMadrone  Species = "ARME"
)

// ErrUnknownSpecies is returned when a species code is not recognised.
var ErrUnknownSpecies = errors.New("taper: unknown species")

var knownSpecies = []Species{
	DouglasFir,
	WesternHemlock,
	WesternRedcedar,
	RedAlder,
	BigleafMaple,
	PacificMadrone,
}

// KnownSpecies returns every recognised species in code order.
func KnownSpecies() []Species {
	out := append([]Species(nil), knownSpecies...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseSpecies resolves a case-insensitive FIA code. Unknown codes return an
// error wrapping ErrUnknownSpecies that names the closest known code.
func ParseSpecies(raw string) (Species, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrUnknownSpecies)
	}
	for _, s := range knownSpecies {
		if string(s) == code {
			return s, nil
		}
	}
	if suggestion, ok := closestSpecies(code); ok {
		return "", fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownSpecies, raw, suggestion)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpecies, raw)
}

// closestSpecies only suggests codes within two edits; anything further is
// more likely a different naming scheme than a typo.
func closestSpecies(code string) (Species, bool) {
	best := Species("")
	bestDistance := 3
	for _, s := range knownSpecies {
		d := levenshtein.ComputeDistance(code, string(s))
		if d < bestDistance {
			best, bestDistance = s, d
		}
	}
	return best, best != ""
}

func (s Species) String() string { return string(s) }
