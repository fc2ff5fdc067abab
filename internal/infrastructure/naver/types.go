package naver

// SearchResponse is the body of GET /v1/search/shop.json
type SearchResponse struct {
	LastBuildDate string `json:"lastBuildDate"`
	Total         int    `json:"total"`
	Start         int    `json:"start"`
	Display       int    `json:"display"`
	Items         []Item `json:"items"`
}

// Item is one shopping result. Prices are strings of digits; hprice is often empty.
type Item struct {
	Title       string `json:"title"` // contains <b> highlight tags
	Link        string `json:"link"`
	Image       string `json:"image"`
	LPrice      string `json:"lprice"`
	HPrice      string `json:"hprice"`
	MallName    string `json:"mallName"`
	ProductID   string `json:"productId"`
	ProductType string `json:"productType"`
	Brand       string `json:"brand"`
	Maker       string `json:"maker"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	Category3   string `json:"category3"`
	Category4   string `json:"category4"`
}

// ErrorResponse is returned by the open API on 4xx
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}
