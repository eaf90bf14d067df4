package planning

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// minStudentScore is the similarity under which a student is not suggested.
const minStudentScore = 0.75

type rankedStudent struct {
	etudiant Etudiant
	score    float64
}

// RankStudents returns the students matching query, best match first.
// A student matches when query is a substring of their name or close enough to it.
func RankStudents(students []Etudiant, query string) []Etudiant {
	query = normalizeName(query)
	if query == "" {
		return students
	}

	ranked := make([]rankedStudent, 0, len(students))
	for _, e := range students {
		if score := studentScore(e, query); score >= minStudentScore {
			ranked = append(ranked, rankedStudent{etudiant: e, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	res := make([]Etudiant, len(ranked))
	for i, r := range ranked {
		res[i] = r.etudiant
	}
	return res
}

func studentScore(e Etudiant, query string) float64 {
	var best float64
	for _, candidate := range []string{e.FullName(), e.Nom + " " + e.Prenom, e.Nom, e.Prenom, e.CNE} {
		candidate = normalizeName(candidate)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, query) {
			// substring hits always rank above fuzzy ones
			return 1 + float64(len(query))/float64(len(candidate))
		}
		m := difflib.NewMatcher(splitChars(query), splitChars(candidate))
		if r := m.Ratio(); r > best {
			best = r
		}
	}
	return best
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}
