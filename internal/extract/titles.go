package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// maxTitleLength bounds resolved titles; agenda headings rarely run past a
// sentence, and an unbounded capture can swallow a whole paragraph.
const maxTitleLength = 200

// titlePatternsFor builds the heading patterns tried for one item number,
// most explicit first, tolerant of irregular spacing. Learned patterns from
// the extraction memory (with a %s slot for the item number) are tried
// after the built-ins.
func titlePatternsFor(itemNumber string, learned []string) []*regexp.Regexp {
	num := regexp.QuoteMeta(itemNumber)
	raw := []string{
		`(?im)^\s*item\s+(?:no\.?\s*)?` + num + `\s*[:.\-–]\s*(.+)$`,
		`(?im)^\s*` + num + `\s*[.\-–:]\s+(.+)$`,
		`(?im)^\s*agenda\s+item\s+` + num + `\s*[:.\-–]?\s*(.+)$`,
	}
	for _, pat := range learned {
		if !strings.Contains(pat, "%s") {
			continue
		}
		raw = append(raw, fmt.Sprintf(pat, num))
	}

	var out []*regexp.Regexp
	for _, r := range raw {
		re, err := regexp.Compile(r)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// TitleResolver attaches human-readable titles to vote records by
// cross-referencing the cleaned agenda text. Resolution failure never
// blocks extraction; the generic placeholder stays and a note is added.
type TitleResolver struct {
	agenda  string
	learned []string
}

// NewTitleResolver builds a resolver over cleaned agenda text. learned is
// the extraction memory's list of item-header patterns (may be nil).
func NewTitleResolver(agenda string, learned []string) *TitleResolver {
	return &TitleResolver{agenda: agenda, learned: learned}
}

// Resolve finds the agenda heading for an item number. Returns the title
// and true, or "" and false when no heading matches.
func (r *TitleResolver) Resolve(itemNumber string) (string, bool) {
	if strings.TrimSpace(r.agenda) == "" || itemNumber == "" {
		return "", false
	}
	for _, re := range titlePatternsFor(itemNumber, r.learned) {
		m := re.FindStringSubmatch(r.agenda)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		if len(title) > maxTitleLength {
			title = strings.TrimSpace(title[:maxTitleLength])
		}
		return title, true
	}
	return "", false
}

// ResolveAll fills in titles for every record still carrying a generic
// placeholder, annotating the ones that stay unresolved.
func (r *TitleResolver) ResolveAll(votes []VoteRecord) []VoteRecord {
	for i := range votes {
		if !votes[i].HasGenericTitle() {
			continue
		}
		title, ok := r.Resolve(votes[i].AgendaItemNumber)
		if ok {
			votes[i].AgendaItemTitle = title
			continue
		}
		if votes[i].AgendaItemTitle == "" {
			votes[i].AgendaItemTitle = GenericTitle(votes[i].AgendaItemNumber)
		}
		votes[i].AddNote("title unresolved from agenda text")
	}
	return votes
}
