package match

import "sort"

// DefaultMinSimilarity is the lowest score a name needs to be suggested.
const DefaultMinSimilarity = 0.6

// Candidate is a known name scored against an unknown one.
type Candidate struct {
	Name  string
	Score float64
}

// Rank scores every known name against name and returns them best first.
// Ties keep the order of known.
func Rank(name string, known []string) []Candidate {
	out := make([]Candidate, 0, len(known))
	for _, k := range known {
		out = append(out, Candidate{Name: k, Score: Similarity(name, k)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

// Suggest returns up to limit known names that look like name, best first.
// An exact (normalized) match is never suggested since it is not a typo.
func Suggest(name string, known []string, limit int) []string {
	var out []string

	for _, c := range Rank(name, known) {
		if limit > 0 && len(out) >= limit {
			break
		}

		if c.Score < DefaultMinSimilarity {
			break
		}

		if c.Name == name {
			continue
		}

		out = append(out, c.Name)
	}

	return out
}
