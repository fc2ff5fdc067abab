package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pricelens/backend/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// nameLookback is how many characters before a price are searched for a product name
// when the price sits alone on its line.
const nameLookback = 100

// PriceValidator turns the digits captured by a price pattern into a price.
// It reports false for anything that should be treated as noise.
type PriceValidator func(digits string) (int64, bool)

// PricePattern is one way of spotting a price in OCR text.
// Regexp must capture the numeric part in group 1.
type PricePattern struct {
	Name     string
	Regexp   *regexp.Regexp
	Validate PriceValidator
}

// DefaultPricePatterns covers the ways Korean price tags print won amounts.
// Every pattern runs over the whole text and all matches are pooled.
func DefaultPricePatterns() []PricePattern {
	return []PricePattern{
		{Name: "grouped-won-spaced", Regexp: regexp.MustCompile(`(\d{1,3}(?:,\d{3})+)\s*원`), Validate: ValidateTagPrice},
		{Name: "grouped-won", Regexp: regexp.MustCompile(`(\d{1,3}(?:,\d{3})+)원`), Validate: ValidateTagPrice},
		{Name: "won-sign", Regexp: regexp.MustCompile(`₩\s*(\d{1,3}(?:,\d{3})+)`), Validate: ValidateTagPrice},
		{Name: "plain-won", Regexp: regexp.MustCompile(`(\d{4,})\s*원`), Validate: ValidateTagPrice},
	}
}

// ValidateTagPrice parses comma-grouped digits and keeps prices inside the tag price range.
func ValidateTagPrice(digits string) (int64, bool) {
	price, err := strconv.ParseInt(strings.ReplaceAll(digits, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return price, price >= domain.MinTagPrice && price <= domain.MaxTagPrice
}

// Compiled regex patterns for product name cleanup
var (
	embeddedPriceRegex = regexp.MustCompile(`\d[\d,]*\s*원|₩\s*\d[\d,]*`)
	currencyGlyphRegex = regexp.MustCompile(`₩`)
	leadingBulletRegex = regexp.MustCompile(`^\s*[-•·*]+\s*`)
	lineBreakRegex     = regexp.MustCompile(`\r\n?`)
)

// priceMatch is a price found in the text before a name is attached to it
type priceMatch struct {
	price  int64
	raw    string
	offset int
}

// PriceExtractor pulls product/price pairs out of noisy OCR text.
// It holds no mutable state and is safe for concurrent use.
type PriceExtractor struct {
	patterns []PricePattern
}

// NewPriceExtractor creates an extractor with the default patterns followed by any extra ones.
func NewPriceExtractor(extra ...PricePattern) *PriceExtractor {
	patterns := DefaultPricePatterns()
	for _, p := range extra {
		if p.Regexp == nil {
			continue
		}
		if p.Validate == nil {
			p.Validate = ValidateTagPrice
		}
		patterns = append(patterns, p)
	}
	return &PriceExtractor{patterns: patterns}
}

// Extract returns the products found in rawText in first-seen order.
// It never fails: text without a usable price/name pair yields an empty slice.
func (e *PriceExtractor) Extract(rawText string) []domain.ProductRecord {
	products := []domain.ProductRecord{}

	text := normalizeOCRText(rawText)
	if strings.TrimSpace(text) == "" {
		return products
	}

	for _, match := range e.findPrices(text) {
		candidate := domain.ProductRecord{
			Name:     productNameFor(text, match),
			Price:    match.price,
			RawPrice: match.raw,
		}
		if !isAcceptable(candidate) || isDuplicate(products, candidate) {
			continue
		}
		products = append(products, candidate)
	}

	return products
}

// SanitizeRecords applies the extractor's cleanup, range and dedup rules to records
// that came from somewhere else, such as a vision model answering in JSON.
func (e *PriceExtractor) SanitizeRecords(records []domain.ProductRecord) []domain.ProductRecord {
	products := []domain.ProductRecord{}
	for _, r := range records {
		candidate := domain.ProductRecord{
			Name:     cleanTagName(norm.NFKC.String(r.Name)),
			Price:    r.Price,
			RawPrice: strings.TrimSpace(r.RawPrice),
		}
		if candidate.RawPrice == "" {
			candidate.RawPrice = fmt.Sprintf("%d원", candidate.Price)
		}
		if !isAcceptable(candidate) || isDuplicate(products, candidate) {
			continue
		}
		products = append(products, candidate)
	}
	return products
}

// findPrices runs every pattern over the text and pools the accepted matches in text order.
func (e *PriceExtractor) findPrices(text string) []priceMatch {
	var matches []priceMatch
	for _, pattern := range e.patterns {
		for _, loc := range pattern.Regexp.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			price, ok := pattern.Validate(text[loc[2]:loc[3]])
			if !ok {
				continue
			}
			matches = append(matches, priceMatch{
				price:  price,
				raw:    text[loc[0]:loc[1]],
				offset: loc[0],
			})
		}
	}
	sortByOffset(matches)
	return matches
}

// productNameFor picks the name for a price: the text before it on its own line wins,
// otherwise the last non-empty line of the lookback window.
func productNameFor(text string, m priceMatch) string {
	lineStart := strings.LastIndexByte(text[:m.offset], '\n') + 1
	lineEnd := len(text)
	if idx := strings.IndexByte(text[m.offset:], '\n'); idx >= 0 {
		lineEnd = m.offset + idx
	}
	line := text[lineStart:lineEnd]

	if idx := strings.Index(line, m.raw); idx >= 0 {
		if name := cleanTagName(line[:idx]); name != "" {
			return name
		}
	}

	window := text[lookbackStart(text, m.offset, nameLookback):m.offset]
	lines := strings.Split(window, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if name := cleanTagName(lines[i]); name != "" {
			return name
		}
	}
	return ""
}

// lookbackStart returns the byte offset n characters before offset
func lookbackStart(text string, offset, n int) int {
	start := offset
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	return start
}

// cleanTagName strips prices, currency glyphs and bullets from a name fragment
func cleanTagName(name string) string {
	name = embeddedPriceRegex.ReplaceAllString(name, " ")
	name = currencyGlyphRegex.ReplaceAllString(name, " ")
	name = leadingBulletRegex.ReplaceAllString(name, "")
	name = multipleSpacesRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// normalizeOCRText folds full-width digits, ￦ and odd spaces to their plain forms
// and unifies line breaks.
func normalizeOCRText(s string) string {
	return lineBreakRegex.ReplaceAllString(norm.NFKC.String(s), "\n")
}

func isAcceptable(p domain.ProductRecord) bool {
	if p.Price < domain.MinTagPrice || p.Price > domain.MaxTagPrice {
		return false
	}
	n := utf8.RuneCountInString(p.Name)
	return n >= domain.MinNameLength && n <= domain.MaxNameLength
}

// isDuplicate reports whether the candidate is the same tag matched twice:
// same name, or same price with one name contained in the other.
func isDuplicate(products []domain.ProductRecord, candidate domain.ProductRecord) bool {
	for _, p := range products {
		if p.Name == candidate.Name {
			return true
		}
		if p.Price == candidate.Price &&
			(strings.Contains(candidate.Name, p.Name) || strings.Contains(p.Name, candidate.Name)) {
			return true
		}
	}
	return false
}

// PatternNames lists the configured patterns in evaluation order
func (e *PriceExtractor) PatternNames() []string {
	names := make([]string, 0, len(e.patterns))
	for _, p := range e.patterns {
		names = append(names, p.Name)
	}
	return names
}

// sortByOffset orders matches by position; matches at the same offset keep pattern order.
func sortByOffset(matches []priceMatch) {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })
}
