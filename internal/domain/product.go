package domain

// ProductRecord is one product read from a price tag: the name found next to a price,
// the price in won and the literal text the price was matched from.
type ProductRecord struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	RawPrice string `json:"rawPrice"`
}

// Price bounds accepted for a tag price, in won.
const (
	MinTagPrice int64 = 100
	MaxTagPrice int64 = 10_000_000
)

// Name bounds for an extracted product name, in characters.
const (
	MinNameLength = 2
	MaxNameLength = 50
)

// ScanResult is the outcome of reading one price-tag photo
type ScanResult struct {
	Provider string          `json:"provider"`
	Products []ProductRecord `json:"products"`
	RawText  string          `json:"rawText,omitempty"`
	Message  string          `json:"message,omitempty"`
	Usage    *UsageStatus    `json:"usage,omitempty"`
}

// ScanRequest carries a base64 image, optionally as a data URL, and the vision provider to use
type ScanRequest struct {
	Image    string `json:"image" binding:"required"`
	Provider string `json:"provider,omitempty"`
}

// ExtractRequest carries OCR text already obtained elsewhere
type ExtractRequest struct {
	Text string `json:"text" binding:"required"`
}

// CompareRequest asks for the online price of a product seen in a store.
// MartPrice is optional; without it no verdict is produced.
type CompareRequest struct {
	ProductName string `json:"productName" binding:"required"`
	MartPrice   int64  `json:"martPrice,omitempty"`
}

// PriceComparison is the full answer for one product
type PriceComparison struct {
	ProductName       string             `json:"productName"`
	Query             string             `json:"query"`
	MartPrice         int64              `json:"martPrice,omitempty"`
	MartQuantity      int                `json:"martQuantity"`
	MartUnitPrice     int64              `json:"martUnitPrice,omitempty"`
	Offer             OnlineOffer        `json:"offer"`
	OnlineQuantity    int                `json:"onlineQuantity"`
	OnlineUnitPrice   int64              `json:"onlineUnitPrice"`
	UnitPriceCompared bool               `json:"unitPriceCompared"`
	Verdict           *ComparisonVerdict `json:"verdict,omitempty"`
	Confidence        float64            `json:"confidence"` // offer match score 0-100
	Source            string             `json:"source"`     // provider name or "Cache"
	LowConfidence     bool               `json:"lowConfidence,omitempty"`
}

// CompareOutcome is one entry of a batch comparison; exactly one of Result and Error is set.
type CompareOutcome struct {
	Request CompareRequest   `json:"request"`
	Result  *PriceComparison `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}
