package usecase

import (
	"github.com/pricelens/backend/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Default side labels used in verdict messages
const (
	DefaultMartLabel   = "마트"
	DefaultOnlineLabel = "온라인"
)

// PriceComparator turns two prices in the same unit into a display verdict.
// The first price is the one being judged (the store price), the second is the reference.
type PriceComparator struct {
	firstLabel  string
	secondLabel string
}

// NewPriceComparator creates a comparator; empty labels fall back to 마트 / 온라인
func NewPriceComparator(firstLabel, secondLabel string) *PriceComparator {
	if firstLabel == "" {
		firstLabel = DefaultMartLabel
	}
	if secondLabel == "" {
		secondLabel = DefaultOnlineLabel
	}
	return &PriceComparator{firstLabel: firstLabel, secondLabel: secondLabel}
}

// Compare computes priceA - priceB and the percentage of that gap relative to priceB.
// Both prices must be positive.
func (c *PriceComparator) Compare(priceA, priceB int64) (domain.ComparisonVerdict, error) {
	if priceA <= 0 || priceB <= 0 {
		return domain.ComparisonVerdict{}, domain.ErrInvalidPrice
	}

	difference := priceA - priceB
	absDiff := difference
	if absDiff < 0 {
		absDiff = -absDiff
	}

	verdict := domain.ComparisonVerdict{
		DifferenceSigned: difference,
		PercentDifference: decimal.NewFromInt(absDiff).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(priceB)).
			Round(0).
			IntPart(),
	}

	switch {
	case difference < 0:
		verdict.CheaperSide = domain.CheaperFirst
		verdict.ColorTag = domain.ColorGreen
		verdict.Message = withSubject(c.firstLabel) + " " + formatWon(absDiff) + " 저렴해요!"
	case difference > 0:
		verdict.CheaperSide = domain.CheaperSecond
		verdict.ColorTag = domain.ColorRed
		verdict.Message = withSubject(c.secondLabel) + " " + formatWon(absDiff) + " 저렴해요"
	default:
		verdict.CheaperSide = domain.CheaperEqual
		verdict.ColorTag = domain.ColorGray
		verdict.Message = "가격이 동일해요"
	}

	return verdict, nil
}

// formatWon renders an amount with thousands separators, e.g. 12,300원
func formatWon(amount int64) string {
	return message.NewPrinter(language.Korean).Sprintf("%d원", amount)
}

// withSubject attaches the subject particle that fits the label's last syllable:
// 이 after a final consonant, 가 otherwise.
func withSubject(label string) string {
	runes := []rune(label)
	if len(runes) == 0 {
		return label
	}
	last := runes[len(runes)-1]
	if last < 0xAC00 || last > 0xD7A3 {
		return label + "이(가)"
	}
	if (last-0xAC00)%28 != 0 {
		return label + "이"
	}
	return label + "가"
}
