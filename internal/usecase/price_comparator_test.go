package usecase

import (
	"errors"
	"testing"

	"github.com/pricelens/backend/internal/domain"
)

func TestCompare(t *testing.T) {
	c := NewPriceComparator("", "")

	testCases := []struct {
		name   string
		priceA int64
		priceB int64
		want   domain.ComparisonVerdict
	}{
		{
			name:   "mart cheaper",
			priceA: 1200,
			priceB: 1500,
			want: domain.ComparisonVerdict{
				DifferenceSigned:  -300,
				PercentDifference: 20,
				CheaperSide:       domain.CheaperFirst,
				Message:           "마트가 300원 저렴해요!",
				ColorTag:          domain.ColorGreen,
			},
		},
		{
			name:   "online cheaper",
			priceA: 1500,
			priceB: 1200,
			want: domain.ComparisonVerdict{
				DifferenceSigned:  300,
				PercentDifference: 25,
				CheaperSide:       domain.CheaperSecond,
				Message:           "온라인이 300원 저렴해요",
				ColorTag:          domain.ColorRed,
			},
		},
		{
			name:   "equal prices",
			priceA: 990,
			priceB: 990,
			want: domain.ComparisonVerdict{
				DifferenceSigned:  0,
				PercentDifference: 0,
				CheaperSide:       domain.CheaperEqual,
				Message:           "가격이 동일해요",
				ColorTag:          domain.ColorGray,
			},
		},
		{
			name:   "thousands separator and rounding",
			priceA: 10000,
			priceB: 22500,
			want: domain.ComparisonVerdict{
				DifferenceSigned:  -12500,
				PercentDifference: 56,
				CheaperSide:       domain.CheaperFirst,
				Message:           "마트가 12,500원 저렴해요!",
				ColorTag:          domain.ColorGreen,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Compare(tc.priceA, tc.priceB)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Compare(%d, %d) = %+v, want %+v", tc.priceA, tc.priceB, got, tc.want)
			}
		})
	}
}

func TestCompareInvalidPrices(t *testing.T) {
	c := NewPriceComparator("", "")

	pairs := [][2]int64{{0, 100}, {100, 0}, {-1, 500}, {500, -1}}
	for _, p := range pairs {
		if _, err := c.Compare(p[0], p[1]); !errors.Is(err, domain.ErrInvalidPrice) {
			t.Errorf("Compare(%d, %d) error = %v, want ErrInvalidPrice", p[0], p[1], err)
		}
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	c := NewPriceComparator("", "")

	pairs := [][2]int64{{1200, 1500}, {100, 10_000_000}, {3333, 3332}, {777, 777}}
	for _, p := range pairs {
		ab, err := c.Compare(p[0], p[1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ba, err := c.Compare(p[1], p[0])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ab.DifferenceSigned != -ba.DifferenceSigned {
			t.Errorf("difference not antisymmetric for %v: %d vs %d", p, ab.DifferenceSigned, ba.DifferenceSigned)
		}
	}
}

func TestCompareSamePriceIsGray(t *testing.T) {
	c := NewPriceComparator("", "")

	for _, price := range []int64{1, 100, 54321, 10_000_000} {
		got, err := c.Compare(price, price)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ColorTag != domain.ColorGray || got.PercentDifference != 0 {
			t.Errorf("Compare(%d, %d) = %+v, want gray with 0%%", price, price, got)
		}
	}
}

func TestCompareCustomLabels(t *testing.T) {
	c := NewPriceComparator("쿠팡", "네이버")

	got, err := c.Compare(1000, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message != "네이버가 100원 저렴해요" {
		t.Errorf("Message = %q", got.Message)
	}

	got, err = c.Compare(900, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message != "쿠팡이 100원 저렴해요!" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestWithSubject(t *testing.T) {
	testCases := []struct {
		label string
		want  string
	}{
		{"마트", "마트가"},
		{"온라인", "온라인이"},
		{"쿠팡", "쿠팡이"},
		{"Costco", "Costco이(가)"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			if got := withSubject(tc.label); got != tc.want {
				t.Errorf("withSubject(%q) = %q, want %q", tc.label, got, tc.want)
			}
		})
	}
}
