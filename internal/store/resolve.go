package store

import (
	"context"
	"math"
	"strings"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/graphmodel"
)

// ResolveStrategy selects the matching algorithm ResolveNodes uses.
type ResolveStrategy string

const (
	StrategyExact    ResolveStrategy = "exact"
	StrategyFuzzy    ResolveStrategy = "fuzzy"
	StrategySemantic ResolveStrategy = "semantic"
)

// CandidateFilter narrows the candidate set ResolveNodes searches (spec
// §4.6, resolve_nodes).
type CandidateFilter struct {
	Tag  string
	Path string
}

// ResolveResult is one resolved query (spec §4.6).
type ResolveResult struct {
	Query   string
	MatchID string
	Matched bool
	Score   float64
}

// ResolveNodes matches each name against candidate titles using the given
// strategy (spec §4.6, resolve_nodes).
func (s *Store) ResolveNodes(ctx context.Context, names []string, strategy ResolveStrategy, threshold float64, filter CandidateFilter, emb embedder.Embedder) ([]ResolveResult, error) {
	candidates, err := s.candidateNodes(filter)
	if err != nil {
		return nil, err
	}

	results := make([]ResolveResult, 0, len(names))
	for _, query := range names {
		var result ResolveResult
		switch strategy {
		case StrategyExact:
			result = resolveExact(query, candidates)
		case StrategySemantic:
			result, err = s.resolveSemantic(ctx, query, candidates, threshold, emb)
			if err != nil {
				return nil, err
			}
		default:
			result = resolveFuzzy(query, candidates, threshold)
		}
		result.Query = query
		results = append(results, result)
	}
	return results, nil
}

func (s *Store) candidateNodes(filter CandidateFilter) ([]graphmodel.Node, error) {
	if filter.Tag != "" {
		return s.cache.SearchByTags([]string{filter.Tag}, cache.TagModeAny, 0)
	}
	res, err := s.cache.ListNodes(cache.ListFilter{PathPrefix: filter.Path})
	if err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

func resolveExact(query string, candidates []graphmodel.Node) ResolveResult {
	lowered := strings.ToLower(query)
	for _, c := range candidates {
		if strings.ToLower(c.Title) == lowered {
			return ResolveResult{MatchID: c.ID, Matched: true, Score: 1}
		}
	}
	return ResolveResult{Matched: false}
}

func resolveFuzzy(query string, candidates []graphmodel.Node, threshold float64) ResolveResult {
	lowered := strings.ToLower(query)
	best := ResolveResult{Matched: false}
	bestScore := -1.0
	for _, c := range candidates {
		score := diceCoefficient(lowered, strings.ToLower(c.Title))
		if score > bestScore {
			bestScore = score
			best = ResolveResult{MatchID: c.ID, Score: score}
		}
	}
	if bestScore >= threshold {
		best.Matched = true
		return best
	}
	return ResolveResult{Matched: false, Score: bestScore}
}

func (s *Store) resolveSemantic(ctx context.Context, query string, candidates []graphmodel.Node, threshold float64, emb embedder.Embedder) (ResolveResult, error) {
	if emb == nil {
		return ResolveResult{Matched: false}, nil
	}
	queryVec, err := emb.Embed(ctx, query)
	if err != nil {
		return ResolveResult{}, err
	}

	best := ResolveResult{Matched: false}
	bestScore := -1.0
	for _, c := range candidates {
		titleVec, err := emb.Embed(ctx, c.Title)
		if err != nil {
			return ResolveResult{}, err
		}
		sim := 1 - cosineDistance(queryVec, titleVec)
		if sim > bestScore {
			bestScore = sim
			best = ResolveResult{MatchID: c.ID, Score: sim}
		}
	}
	if bestScore >= threshold {
		best.Matched = true
		return best, nil
	}
	return ResolveResult{Matched: false, Score: bestScore}, nil
}

// cosineDistance mirrors cache's vector-distance formula so resolve_nodes
// and the Cache's own search agree on semantics (spec §4.4/§4.6).
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// diceCoefficient computes the Sørensen–Dice coefficient over character
// bigrams of a and b (spec §4.6, fuzzy strategy).
func diceCoefficient(a, b string) float64 {
	bigramsA := bigramMultiset(a)
	bigramsB := bigramMultiset(b)
	if len(bigramsA) == 0 && len(bigramsB) == 0 {
		if a == b {
			return 1
		}
		return 0
	}
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	overlap := 0
	remaining := make(map[string]int, len(bigramsB))
	for k, v := range bigramsB {
		remaining[k] = v
	}
	for bg, count := range bigramsA {
		if avail, ok := remaining[bg]; ok {
			take := count
			if avail < take {
				take = avail
			}
			overlap += take
			remaining[bg] = avail - take
		}
	}

	total := 0
	for _, v := range bigramsA {
		total += v
	}
	for _, v := range bigramsB {
		total += v
	}
	return 2 * float64(overlap) / float64(total)
}

func bigramMultiset(s string) map[string]int {
	runes := []rune(s)
	out := make(map[string]int)
	if len(runes) < 2 {
		if len(runes) == 1 {
			out[string(runes)] = 1
		}
		return out
	}
	for i := 0; i < len(runes)-1; i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}
