package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
)

const (
	DefaultCutoff = 85.0
	DefaultLimit  = 20

	minQueryRunes = 2
)

// Options tune Find. A nil Cutoff means DefaultCutoff; a zero cutoff keeps every
// positive score.
type Options struct {
	Cutoff *float64
	Limit  int
}

// CutoffOf returns v as an explicit cutoff.
func CutoffOf(v float64) *float64 { return &v }

type settings struct {
	cutoff float64
	limit  int
}

func (o Options) resolve() settings {
	s := settings{cutoff: DefaultCutoff, limit: o.Limit}
	if o.Cutoff != nil && *o.Cutoff >= 0 {
		s.cutoff = *o.Cutoff
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	return s
}

type Candidate struct {
	Entry types.CompanyIndexEntry `json:"entry"`
	Score float64                 `json:"score"`
}

// Matcher binds Find to fixed options.
type Matcher struct {
	opts Options
	set  settings
}

func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts, set: opts.resolve()}
}

func (m *Matcher) Cutoff() float64 { return m.set.cutoff }
func (m *Matcher) Limit() int      { return m.set.limit }

func (m *Matcher) Find(query string, index *types.CompanyIndex) []Candidate {
	return Find(query, index, m.opts)
}

// Find scores every index key against the normalized query and returns the entries at or
// above the cutoff, best first. Equal scores keep index order.
func Find(query string, index *types.CompanyIndex, opts Options) []Candidate {
	set := opts.resolve()
	q := normalization.Key(query)
	if len([]rune(q)) < minQueryRunes || index.Len() == 0 {
		return []Candidate{}
	}
	out := []Candidate{}
	for _, e := range index.Entries {
		score := PartialTokenSetRatio(q, e.Key)
		if score <= 0 || score < set.cutoff {
			continue
		}
		out = append(out, Candidate{Entry: e, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > set.limit {
		out = out[:set.limit]
	}
	return out
}

// PartialTokenSetRatio is 100 when the whitespace token sets of a and b share a token.
// Otherwise it is the partial ratio of the sorted tokens each side does not share.
func PartialTokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	for t := range ta {
		if _, ok := tb[t]; ok {
			return 100
		}
	}
	return PartialRatio(joinSorted(ta), joinSorted(tb))
}

// PartialRatio is the best similarity of the shorter string against every window of the
// longer one with the same length.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	n := len(ra)
	if n == 0 {
		return 0
	}
	short := string(ra)
	best := 0.0
	for i := 0; i+n <= len(rb); i++ {
		d := levenshtein.ComputeDistance(short, string(rb[i:i+n]))
		sim := 100 * (1 - float64(d)/float64(n))
		if sim > best {
			best = sim
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func joinSorted(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}
