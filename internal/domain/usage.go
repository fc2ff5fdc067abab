package domain

// UsageStatus describes the OCR quota for the current month
type UsageStatus struct {
	Month      string `json:"month"` // "2006-01"
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Percentage int    `json:"percentage"`
	Allowed    bool   `json:"allowed"`
	Message    string `json:"message,omitempty"`
}
