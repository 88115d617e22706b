package extract

import (
	"sort"
	"strings"
	"unicode"
)

// roleTokens are honorific/role words stripped from raw name strings at the
// token level. Token-level removal (not substring) keeps surnames that
// merely contain a role word ("Chairez") intact.
var roleTokens = map[string]bool{
	"COUNCILMEMBER":  true,
	"COUNCILWOMAN":   true,
	"COUNCILMAN":     true,
	"MAYOR":          true,
	"PRO":            true,
	"TEM":            true,
	"TEMPORE":        true,
	"VICE":           true,
	"CHAIR":          true,
	"CHAIRPERSON":    true,
	"AUTHORITY":      true,
	"MEMBER":         true,
	"COMMISSIONER":   true,
	"SUPERVISOR":     true,
	"DR":             true,
	"MR":             true,
	"MS":             true,
	"MRS":            true,
}

// NameNormalizer strips role titles from raw member names and maps spelling
// variants to a canonical roster. Roster membership changes across years,
// so an unmatched name is a warning and a correction candidate, never an
// error.
type NameNormalizer struct {
	roster      map[string]string // upper-cased name -> canonical form
	corrections map[string]string // observed -> canonical, learned + config

	// observed collects corrections discovered during a run (unmatched
	// names resolved by fuzzy roster match). The engine folds them into
	// the learning memory's delta at end of run.
	observed map[string]string
	// unknown collects normalized names that matched nothing on the
	// roster, for warning notes.
	unknown map[string]bool
}

// NewNameNormalizer builds a normalizer from a canonical roster and an
// observed-name correction map (config variants merged with learned
// corrections from the extraction memory).
func NewNameNormalizer(roster []string, corrections map[string]string) *NameNormalizer {
	n := &NameNormalizer{
		roster:      make(map[string]string, len(roster)),
		corrections: make(map[string]string, len(corrections)),
		observed:    make(map[string]string),
		unknown:     make(map[string]bool),
	}
	for _, name := range roster {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		n.roster[strings.ToUpper(name)] = name
	}
	for observed, canonical := range corrections {
		n.corrections[strings.ToUpper(strings.TrimSpace(observed))] = canonical
	}
	return n
}

// Normalize strips role tokens from a raw name and resolves it against the
// roster. Returns the canonical (or best-effort title-cased) name and
// whether it matched a known member.
func (n *NameNormalizer) Normalize(raw string) (string, bool) {
	stripped := StripRoleTokens(raw)
	if stripped == "" {
		return "", false
	}

	key := strings.ToUpper(stripped)
	if canonical, ok := n.roster[key]; ok {
		return canonical, true
	}
	if canonical, ok := n.corrections[key]; ok {
		return canonical, true
	}

	// Tolerate minor spelling drift: a single-edit match against the
	// roster is taken as a correction candidate and remembered.
	for rosterKey, canonical := range n.roster {
		if withinOneEdit(key, rosterKey) {
			n.observed[stripped] = canonical
			return canonical, true
		}
	}

	pretty := titleCase(stripped)
	n.unknown[pretty] = true
	return pretty, false
}

// ObservedCorrections returns spelling corrections discovered this run,
// keyed by the observed form.
func (n *NameNormalizer) ObservedCorrections() map[string]string {
	out := make(map[string]string, len(n.observed))
	for k, v := range n.observed {
		out[k] = v
	}
	return out
}

// UnknownNames returns names that resolved to nothing on the roster,
// sorted so downstream notes are deterministic.
func (n *NameNormalizer) UnknownNames() []string {
	out := make([]string, 0, len(n.unknown))
	for name := range n.unknown {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StripRoleTokens removes role/title tokens from a raw name string,
// leaving the member's actual name.
func StripRoleTokens(raw string) string {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		clean := strings.Trim(tok, ".,;:")
		if clean == "" || roleTokens[strings.ToUpper(clean)] {
			continue
		}
		kept = append(kept, clean)
	}
	return strings.Join(kept, " ")
}

// withinOneEdit reports whether two strings differ by at most one edit
// (insert, delete, or substitute). Cheap enough for roster-sized scans.
func withinOneEdit(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if la > lb {
		a, b = b, a
		la, lb = lb, la
	}
	if lb-la > 1 {
		return false
	}
	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if la == lb {
			i++
		}
		j++
	}
	return true
}

// titleCase renders an unmatched name in presentable form ("HERNANDEZ" ->
// "Hernandez") without touching interior capitalization of mixed-case
// input ("McDonald").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToUpper(w) || w == strings.ToLower(w) {
			runes := []rune(strings.ToLower(w))
			runes[0] = unicode.ToUpper(runes[0])
			words[i] = string(runes)
		}
	}
	return strings.Join(words, " ")
}
