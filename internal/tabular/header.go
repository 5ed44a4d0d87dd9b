package tabular

import "strings"

// Match describes how a wanted column label was found in a header.
type Match int

const (
	// NotFound means neither pass matched.
	NotFound Match = iota
	// Exact means a trimmed header entry equals the wanted label.
	Exact
	// CaseInsensitive means only the case-folded comparison matched.
	CaseInsensitive
)

// String returns the match kind name.
func (m Match) String() string {
	switch m {
	case Exact:
		return "exact"
	case CaseInsensitive:
		return "case_insensitive"
	default:
		return "not_found"
	}
}

// Column is the outcome of resolving a wanted label against a header.
// Index is -1 when Match is NotFound.
type Column struct {
	Index int
	Match Match
}

// Found reports whether the column resolved.
func (c Column) Found() bool { return c.Match != NotFound }

// Resolve finds want in header. Header entries are trimmed before comparison;
// want is used as given. An exact match anywhere in the header wins over a
// case-insensitive one, and within a pass the first entry wins.
func Resolve(header []string, want string) Column {
	for i, h := range header {
		if strings.TrimSpace(h) == want {
			return Column{Index: i, Match: Exact}
		}
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return Column{Index: i, Match: CaseInsensitive}
		}
	}
	return Column{Index: -1, Match: NotFound}
}

// Identity holds the resolved last-name and first-name columns of a header.
type Identity struct {
	Last  Column
	First Column
}

// ResolvePair resolves both identity columns. The header is usable only when
// both are found.
func ResolvePair(header []string, last, first string) (Identity, bool) {
	id := Identity{
		Last:  Resolve(header, last),
		First: Resolve(header, first),
	}
	return id, id.Last.Found() && id.First.Found()
}

// CaseFolded reports whether either column needed the case-insensitive pass.
func (id Identity) CaseFolded() bool {
	return id.Last.Match == CaseInsensitive || id.First.Match == CaseInsensitive
}
