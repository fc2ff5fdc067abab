package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Bounds for a pack quantity read from a marketplace title
const (
	minTitleQuantity = 1
	maxTitleQuantity = 100
)

// maxNormalizePasses caps the fixed-point loop in NormalizeForSearch
const maxNormalizePasses = 8

// Compiled regex patterns for name normalization
var (
	// Magnitude immediately followed by a weight/volume unit: "500ml", "2L", "1.5kg", "300그램"
	unitMagnitudePattern = regexp.MustCompile(`(?i)\d+(?:\.\d+)?(?:(?:ml|l|kg|mg|g|oz|lbs?|cc)\b|리터|그램|킬로)`)

	// A unit glued to a letter multiplier ("2Lx6") has no word boundary; split them first
	unitBeforeMultiplierPattern = regexp.MustCompile(`(?i)(\d(?:ml|l|kg|mg|g|oz|lbs?|cc))(x\d)`)

	// "*4", "× 6"
	symbolMultiplierPattern = regexp.MustCompile(`[*×]\s*(\d+)`)

	// "x4", "X 6", but not the x inside a word like "box6"
	letterMultiplierPattern = regexp.MustCompile(`(^|[^A-Za-z])[xX]\s*(\d+)`)

	// Count followed by a pack noun: "4개입", "6캔", "10 pack", "24ct"
	packCountPattern = regexp.MustCompile(`(?i)(\d+)\s?(?:(?:count|pack|pk|ct|bags?|bottles?|cans?|units?)\b|개입|개|입|팩|봉지|봉|병|캔|롤|구)`)

	// Bare count token as marketplaces write it: "24개", "6개입"
	countTokenPattern = regexp.MustCompile(`(\d+)\s?개`)

	// Multiple spaces cleanup
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// NameNormalizer turns tag names and marketplace titles into search queries and pack sizes
type NameNormalizer struct {
	logger *zap.Logger
}

// NewNameNormalizer creates a new name normalizer
func NewNameNormalizer(logger *zap.Logger) *NameNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NameNormalizer{logger: logger}
}

// NormalizeForSearch strips sizes, multipliers and pack counts from a product name so it can be
// sent to a shopping search. Units go first because the other patterns also start at bare digits.
// The result is a fixed point, so normalizing twice gives the same string.
func (n *NameNormalizer) NormalizeForSearch(name string) string {
	current := name
	for i := 0; i < maxNormalizePasses; i++ {
		next := stripQuantityNoise(current)
		if next == current {
			break
		}
		current = next
	}

	n.logger.Debug("normalized product name",
		zap.String("input", name),
		zap.String("output", current))

	return current
}

// stripQuantityNoise is a single normalization pass
func stripQuantityNoise(s string) string {
	s = norm.NFKC.String(s)
	s = unitBeforeMultiplierPattern.ReplaceAllString(s, "$1 $2")
	s = unitMagnitudePattern.ReplaceAllString(s, " ")
	s = symbolMultiplierPattern.ReplaceAllString(s, " ")
	s = letterMultiplierPattern.ReplaceAllString(s, "${1} ")
	s = packCountPattern.ReplaceAllString(s, " ")
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractQuantity reads the pack size from a store tag name: a multiplier ("*4", "x4") first,
// then a count with a pack noun ("4개입"), defaulting to 1. Never returns less than 1.
func (n *NameNormalizer) ExtractQuantity(name string) int {
	s := withoutUnits(name)

	if q, ok := findMultiplier(s); ok && q >= 1 {
		return q
	}
	if m := packCountPattern.FindStringSubmatch(s); m != nil {
		if q, err := strconv.Atoi(m[1]); err == nil && q >= 1 {
			return q
		}
	}
	return 1
}

// ExtractTitleQuantity reads the pack size from a marketplace title. Titles carry model numbers
// and capacities, so only counts in [1, 100] are trusted: a "N개" token first, then a multiplier.
func (n *NameNormalizer) ExtractTitleQuantity(title string) int {
	s := withoutUnits(title)

	if m := countTokenPattern.FindStringSubmatch(s); m != nil {
		if q, err := strconv.Atoi(m[1]); err == nil && inTitleQuantityRange(q) {
			return q
		}
	}
	if q, ok := findMultiplier(s); ok && inTitleQuantityRange(q) {
		return q
	}
	return 1
}

// UnitPrice divides a price by its pack quantity, rounding half up to whole won.
func UnitPrice(price int64, quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}
	return decimal.NewFromInt(price).
		Div(decimal.NewFromInt(int64(quantity))).
		Round(0).
		IntPart()
}

// withoutUnits removes unit-with-magnitude tokens so "500ml" is never read as a quantity
func withoutUnits(s string) string {
	s = norm.NFKC.String(s)
	s = unitBeforeMultiplierPattern.ReplaceAllString(s, "$1 $2")
	return unitMagnitudePattern.ReplaceAllString(s, " ")
}

// findMultiplier returns the first multiplier in s, symbol or letter form, by position
func findMultiplier(s string) (int, bool) {
	best := -1
	digits := ""

	if loc := symbolMultiplierPattern.FindStringSubmatchIndex(s); loc != nil {
		best = loc[0]
		digits = s[loc[2]:loc[3]]
	}
	if loc := letterMultiplierPattern.FindStringSubmatchIndex(s); loc != nil {
		if best < 0 || loc[0] < best {
			digits = s[loc[4]:loc[5]]
		}
	}
	if digits == "" {
		return 0, false
	}

	q, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return q, true
}

func inTitleQuantityRange(q int) bool {
	return q >= minTitleQuantity && q <= maxTitleQuantity
}
