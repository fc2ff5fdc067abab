package domain

// CheaperSide names which of the two compared prices is lower
type CheaperSide string

const (
	CheaperFirst  CheaperSide = "FIRST"
	CheaperSecond CheaperSide = "SECOND"
	CheaperEqual  CheaperSide = "EQUAL"
)

// ColorTag is the display hint attached to a verdict
type ColorTag string

const (
	ColorGreen ColorTag = "green"
	ColorRed   ColorTag = "red"
	ColorGray  ColorTag = "gray"
)

// ComparisonVerdict is derived from two prices and never stored
type ComparisonVerdict struct {
	DifferenceSigned  int64       `json:"differenceSigned"`
	PercentDifference int64       `json:"percentDifference"`
	CheaperSide       CheaperSide `json:"cheaperSide"`
	Message           string      `json:"message"`
	ColorTag          ColorTag    `json:"colorTag"`
}
