// Package angles holds the one fully deterministic step of the synthesis
// chain: aggregating paper analyses for prompting, and scoring/ranking the
// candidate angles the model returns.
package angles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reef-research/backend/internal/storage/models"
)

// Aggregate pools the extracted material from every analyzed paper into a
// single prompt-ready block.
func Aggregate(papers []models.PaperAnalysis) string {
	var b strings.Builder

	for i, p := range papers {
		fmt.Fprintf(&b, "Paper %d (%s):\n", i+1, p.ArxivID)

		if len(p.Claims) > 0 {
			b.WriteString("  Claims:\n")
			for _, c := range p.Claims {
				fmt.Fprintf(&b, "  - %s\n", c)
			}
		}
		if len(p.Methods) > 0 {
			b.WriteString("  Methods:\n")
			for _, m := range p.Methods {
				fmt.Fprintf(&b, "  - %s\n", m)
			}
		}
		if len(p.Limitations) > 0 {
			b.WriteString("  Limitations:\n")
			for _, l := range p.Limitations {
				fmt.Fprintf(&b, "  - %s\n", l)
			}
		}
		if p.Conclusion != "" {
			fmt.Fprintf(&b, "  Conclusion: %s\n", p.Conclusion)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ScoreAndRank fills in each angle's overall score as the exact arithmetic
// mean of its three sub-scores, sorts descending, and returns the top n.
// Equal scores keep the generator's order (stable sort, no secondary key).
func ScoreAndRank(candidates []models.ResearchAngle, n int) []models.ResearchAngle {
	ranked := make([]models.ResearchAngle, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].OverallScore = (ranked[i].Novelty + ranked[i].Practicality + ranked[i].Impact) / 3
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallScore > ranked[j].OverallScore
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
