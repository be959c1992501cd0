package vision

import (
	"sort"

	pluginvision "github.com/hrygo/stockwear/plugin/vision"
)

// MaxCandidates is the length of the ranked runner-up list.
const MaxCandidates = 3

const (
	messageEmptyCatalog = "No reference embeddings have been registered for catalog products yet."
	messageNoMatch      = "No product with enough similarity was found. Try capturing another image."
	messageIdentified   = "Product identified."
	messageConfirm      = "Confirm that the suggested product matches the capture."
)

// Tier returns the confidence tier of similarity under threshold.
func Tier(similarity, threshold float64) ConfidenceTier {
	switch {
	case similarity >= threshold+pluginvision.HighConfidenceMargin:
		return TierHigh
	case similarity >= threshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Match finds the catalog entry closest to query.
//
// Each entry scores the best similarity among its vectors of the query's
// length; entries with no such vector are not candidates. Ties keep the entry
// that comes first in catalog order. Match reads catalog only.
func Match(query []float32, catalog []*CatalogEntry, threshold float64) *MatchResult {
	result := &MatchResult{
		Threshold:      threshold,
		ConfidenceTier: TierLow,
		Candidates:     []Candidate{},
	}
	if len(catalog) == 0 {
		result.Message = messageEmptyCatalog
		return result
	}

	var (
		best       *CatalogEntry
		bestScore  float64
		candidates []Candidate
	)
	for _, entry := range catalog {
		score, ok := bestSimilarity(query, entry)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			ProductID:  entry.ProductID,
			Name:       entry.Name,
			Similarity: score,
		})
		if best == nil || score > bestScore {
			best, bestScore = entry, score
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	if candidates != nil {
		result.Candidates = candidates
	}

	if best == nil {
		result.Message = messageNoMatch
		return result
	}

	result.Similarity = bestScore
	result.ConfidenceTier = Tier(bestScore, threshold)
	if bestScore < threshold {
		result.Message = messageNoMatch
		return result
	}

	result.Success = true
	result.Product = &ProductDetail{
		ID:          best.ProductID,
		Code:        best.Code,
		Name:        best.Name,
		Description: best.Description,
		Image:       best.Image,
		Supplier:    best.Supplier,
	}
	if result.ConfidenceTier == TierHigh {
		result.Message = messageIdentified
	} else {
		result.Message = messageConfirm
	}
	return result
}

// bestSimilarity max-pools the similarity of query against the entry's comparable vectors.
func bestSimilarity(query []float32, entry *CatalogEntry) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, ref := range entry.Embeddings {
		if len(ref.Vector) != len(query) {
			continue
		}
		similarity, err := pluginvision.CosineSimilarity(query, ref.Vector)
		if err != nil {
			continue
		}
		if !found || similarity > best {
			best, found = similarity, true
		}
	}
	return best, found
}
