package recommend

import (
	"context"
	"log"
	"sort"

	"wardrobeapi/services"
)

const minJudgeConfidence = 65

// Validator re-checks ranked candidates with the judgment oracle and drops
// the ones the oracle is not confident about. The oracle is advisory: any
// failure keeps the original candidate list intact.
type Validator struct {
	Judge services.JudgeProvider
}

// Validate keeps candidates assessed at confidence >= 65 and reorders the
// kept ones by descending confidence. Ties keep the ranker's order.
func (v *Validator) Validate(ctx context.Context, userQuery string, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	summaries := make([]services.CandidateSummary, 0, len(candidates))
	for _, candidate := range candidates {
		summary := services.CandidateSummary{
			ItemID:   candidate.Item.ID,
			Category: string(candidate.Item.Category),
			Style:    string(candidate.Item.Style),
			Season:   string(candidate.Item.Season),
			Tags:     candidate.Item.Tags,
		}
		if candidate.Item.Description != nil {
			summary.Description = *candidate.Item.Description
		}
		summaries = append(summaries, summary)
	}

	assessments, err := v.Judge.AssessCandidates(ctx, userQuery, summaries)
	if err != nil {
		log.Printf("[Validator] judge unavailable, keeping all %d candidates: %v", len(candidates), err)
		return candidates
	}

	confidenceByItem := make(map[uint]int, len(assessments))
	for _, assessment := range assessments {
		confidenceByItem[assessment.ItemID] = assessment.Confidence
	}

	// An unassessed candidate is treated as rejected: the oracle saw it and
	// chose not to vouch for it.
	kept := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if confidenceByItem[candidate.Item.ID] >= minJudgeConfidence {
			kept = append(kept, candidate)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return confidenceByItem[kept[i].Item.ID] > confidenceByItem[kept[j].Item.ID]
	})
	return kept
}
