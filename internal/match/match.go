// Package match scores label overlap between a query item and candidate
// items. Labels come from the external vision service and are short free-text
// tags ("phone", "electronics"); the scorer is a deliberately crude
// containment heuristic rather than token or set equality.
package match

import (
	"sort"
	"strings"

	"github.com/campusfound/campusfound/internal/portal/model"
)

// Thresholds for the two call sites. Interactive search trades precision for
// recall; the unattended notification path is stricter so users are not
// emailed about weak matches. Both comparisons are strict (score > threshold).
const (
	SearchThreshold = 60.0
	NotifyThreshold = 80.0
)

// Match pairs a candidate item with its similarity score against the query.
type Match struct {
	Item  *model.Item `json:"item"`
	Score float64     `json:"score"`
}

// Similarity computes the label-overlap score between a query label set and a
// candidate label set.
//
// A candidate label counts as common when ANY query label case-insensitively
// contains it as a substring ("black iphone" contains "phone"). The score is
// |common| / |queryLabels| * 100. The containment is asymmetric on purpose.
//
// Empty queryLabels yields 0: there is no denominator to score against.
func Similarity(queryLabels, candidateLabels []string) float64 {
	if len(queryLabels) == 0 {
		return 0
	}

	common := 0
	for _, cand := range candidateLabels {
		lc := strings.ToLower(cand)
		for _, q := range queryLabels {
			if strings.Contains(strings.ToLower(q), lc) {
				common++
				break
			}
		}
	}

	return float64(common) / float64(len(queryLabels)) * 100
}

// FindMatches scores every candidate against queryLabels and returns those
// strictly above threshold, sorted by descending score. Equal scores keep
// their input order.
//
// The caller supplies candidates already filtered to the opposite item type
// and unclaimed status; FindMatches performs no I/O.
func FindMatches(queryLabels []string, candidates []*model.Item, threshold float64) []Match {
	if len(queryLabels) == 0 {
		return nil
	}

	var matches []Match
	for _, item := range candidates {
		score := Similarity(queryLabels, item.ImageLabels)
		if score > threshold {
			matches = append(matches, Match{Item: item, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
