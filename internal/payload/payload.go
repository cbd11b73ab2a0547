// Package payload builds the raw request sequences sent by each smuggling
// check. Generation is pure: the same inputs always yield the same bytes.
package payload

import (
	"errors"
	"fmt"
	"strings"
)

// Family identifies a smuggling check by which framing header each tier of
// a front-end/back-end pair is presumed to trust.
type Family string

const (
	CLTE Family = "CL.TE" // front-end uses Content-Length, back-end Transfer-Encoding
	TECL Family = "TE.CL" // front-end uses Transfer-Encoding, back-end Content-Length
	TETE Family = "TE.TE" // both use Transfer-Encoding, one can be made to ignore it
)

// ErrUnknownFamily is returned for check names that match no family.
var ErrUnknownFamily = errors.New("unknown check family")

// Families returns every family in the order checks are run.
func Families() []Family {
	return []Family{CLTE, TECL, TETE}
}

// String returns the family identifier, e.g. "CL.TE".
func (f Family) String() string { return string(f) }

// ParseFamily resolves a user-supplied check name. Separators and case are
// ignored, so "cl-te", "CL.TE" and "clte" are all CLTE.
func ParseFamily(name string) (Family, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "", ".", "", "_", "").Replace(key)
	switch key {
	case "clte":
		return CLTE, nil
	case "tecl":
		return TECL, nil
	case "tete":
		return TETE, nil
	}
	return "", fmt.Errorf("%w: %q (valid: cl-te, te-cl, te-te)", ErrUnknownFamily, name)
}

// ParseFamilies parses a comma-separated list of check names. Duplicates are
// dropped keeping the first occurrence. An empty list selects all families.
func ParseFamilies(list string) ([]Family, error) {
	if strings.TrimSpace(list) == "" {
		return Families(), nil
	}
	var out []Family
	seen := make(map[Family]bool)
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := ParseFamily(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return Families(), nil
	}
	return out, nil
}

// Generate returns the ordered payload sequence for family. Lower indices
// are tried first and the index is what gets reported on detection.
func Generate(family Family, path, host, method string, extra []string) []string {
	switch family {
	case CLTE:
		return CLTEPayloads(path, host, method, extra)
	case TECL:
		return TECLPayloads(path, host, method, extra)
	case TETE:
		return TETEPayloads(path, host, method, extra)
	}
	return nil
}
