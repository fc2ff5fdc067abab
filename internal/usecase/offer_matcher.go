package usecase

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Scoring weights
const (
	queryCoverageWeight = 0.60
	titleCoverageWeight = 0.20
	jaccardWeight       = 0.20
	substringMatchBonus = 10.0
)

// titleStopWords are units, pack nouns and marketplace noise that say nothing about the product
var titleStopWords = map[string]bool{
	// Units
	"ml": true, "l": true, "g": true, "kg": true, "mg": true, "oz": true, "lb": true, "cc": true,
	// Pack nouns
	"개": true, "개입": true, "팩": true, "봉": true, "봉지": true, "병": true, "캔": true, "입": true,
	"box": true, "pack": true, "set": true, "세트": true, "박스": true,
	// Marketplace noise
	"무료배송": true, "당일배송": true, "정품": true, "특가": true, "최저가": true, "행사": true,
	"묶음": true, "대용량": true, "new": true, "best": true,
}

// MatchConfig holds configuration for the offer matcher
type MatchConfig struct {
	MinConfidenceThreshold float64
	EnableFuzzyMatching    bool
	FuzzyEditDistance      int
}

// OfferMatcher picks the offer that best represents a product among search results
type OfferMatcher struct {
	minConfidenceThreshold float64
	enableFuzzyMatching    bool
	fuzzyEditDistance      int
	logger                 *zap.Logger
}

// NewOfferMatcher creates a new offer matcher with the given configuration
func NewOfferMatcher(config MatchConfig, logger *zap.Logger) *OfferMatcher {
	threshold := config.MinConfidenceThreshold
	if threshold <= 0 {
		threshold = 40 // Default 40% confidence
	}

	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &OfferMatcher{
		minConfidenceThreshold: threshold,
		enableFuzzyMatching:    config.EnableFuzzyMatching,
		fuzzyEditDistance:      fuzzyDist,
		logger:                 logger,
	}
}

// SelectOffer returns the cheapest offer whose title matches the query well enough.
// When no offer reaches the threshold it returns the best-scoring one with ErrLowConfidence.
func (m *OfferMatcher) SelectOffer(
	ctx context.Context,
	query string,
	offers []domain.OnlineOffer,
) (*domain.OfferMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	var best, cheapest *domain.OfferMatch

	for _, offer := range offers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if offer.Price <= 0 {
			continue
		}

		score, matched := m.calculateMatchScore(query, offer.Title)
		candidate := &domain.OfferMatch{Offer: offer, MatchScore: score, MatchedTokens: matched}

		m.logger.Debug("scored offer",
			zap.String("query", query),
			zap.String("title", offer.Title),
			zap.Int64("price", offer.Price),
			zap.Float64("score", score),
			zap.Strings("matched", matched))

		if best == nil || score > best.MatchScore {
			best = candidate
		}
		if score >= m.minConfidenceThreshold {
			if cheapest == nil || offer.Price < cheapest.Offer.Price ||
				(offer.Price == cheapest.Offer.Price && score > cheapest.MatchScore) {
				cheapest = candidate
			}
		}
	}

	if best == nil {
		return nil, domain.ErrProductNotFound
	}
	if cheapest == nil {
		return best, domain.ErrLowConfidence
	}
	return cheapest, nil
}

// calculateMatchScore computes similarity between the query and an offer title.
// Weighted combination of query token coverage, title token coverage and Jaccard,
// plus a bonus when the whole query appears in the title. Returns 0-100.
func (m *OfferMatcher) calculateMatchScore(query, title string) (float64, []string) {
	queryTokens := tokenize(query)
	titleTokens := tokenize(title)

	if len(queryTokens) == 0 || len(titleTokens) == 0 {
		return 0, nil
	}

	compactTitle := strings.Join(titleTokens, "")

	queryMatched, matchedTokens := m.findIntersection(queryTokens, titleTokens, compactTitle)
	queryCoverage := float64(queryMatched) / float64(len(queryTokens))

	compactQuery := strings.Join(queryTokens, "")
	titleMatched, _ := m.findIntersection(titleTokens, queryTokens, compactQuery)
	titleCoverage := float64(titleMatched) / float64(len(titleTokens))

	union := findUnion(queryTokens, titleTokens)
	jaccard := float64(queryMatched) / float64(union)

	score := (queryCoverage*queryCoverageWeight + titleCoverage*titleCoverageWeight + jaccard*jaccardWeight) * 100

	// Korean names are often written with or without spaces ("코카콜라 제로" vs "코카콜라제로")
	if utf8.RuneCountInString(compactQuery) > 1 && strings.Contains(compactTitle, compactQuery) {
		score += substringMatchBonus
	}

	if score > 100 {
		score = 100
	}

	return score, matchedTokens
}

// findIntersection counts tokens of `from` present in `in`. A token also matches when it is a
// substring of the other side's compact form, or within the fuzzy edit distance.
func (m *OfferMatcher) findIntersection(from, in []string, compactIn string) (int, []string) {
	set := make(map[string]bool, len(in))
	for _, t := range in {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range from {
		if seen[t] {
			continue
		}
		ok := set[t] ||
			(utf8.RuneCountInString(t) > 1 && strings.Contains(compactIn, t))
		if !ok && m.enableFuzzyMatching {
			for _, other := range in {
				if fuzzyTokenMatch(t, other, m.fuzzyEditDistance) {
					ok = true
					break
				}
			}
		}
		if ok {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}

// tokenize splits a string into normalized lowercase tokens.
// Removes punctuation, units, pack nouns, marketplace noise and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if titleStopWords[word] || isNumeric(word) {
			continue
		}
		// Single ASCII letters carry no meaning; a single Hangul syllable can ("쌀", "물")
		if len(word) == 1 {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	r1 := []rune(token1)
	r2 := []rune(token2)

	// Short tokens are too easy to confuse
	if len(r1) < 3 || len(r2) < 3 {
		return false
	}

	lenDiff := len(r1) - len(r2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(r1, r2) <= threshold
}

// levenshteinDistance calculates the edit distance between two rune slices
func levenshteinDistance(r1, r2 []rune) int {
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
