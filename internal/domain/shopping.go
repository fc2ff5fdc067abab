package domain

// OnlineOffer is a single item returned by a shopping search provider
type OnlineOffer struct {
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	URL       string `json:"url,omitempty"`
	MallName  string `json:"mallName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	SearchURL string `json:"searchUrl,omitempty"`
}

// OfferMatch is the offer picked for a query with its match score
type OfferMatch struct {
	Offer         OnlineOffer `json:"offer"`
	MatchScore    float64     `json:"matchScore"`
	MatchedTokens []string    `json:"matchedTokens,omitempty"`
}
