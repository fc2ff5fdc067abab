package coupang

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Coupang storefront
	DefaultBaseURL = "https://www.coupang.com"

	// DefaultUserAgent is a mobile Safari UA; the desktop page is served to bots less often
	DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"

	providerName      = "coupang"
	productPathPrefix = "/vp/products/"
	maxPageSize       = 4 << 20
)

// Config holds Coupang scraping settings
type Config struct {
	BaseURL    string
	UserAgent  string
	MaxResults int
	RateLimit  float64 // page fetches per second
	Timeout    time.Duration
}

// Client reads offers from the Coupang search results page
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	maxResults  int
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a Coupang client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		maxResults:  cfg.MaxResults,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 2),
		logger:      logger.With(zap.String("provider", providerName)),
	}
}

// Name identifies the provider in cache keys and responses
func (c *Client) Name() string { return providerName }

// SearchURL is the results page for a query
func (c *Client) SearchURL(query string) string {
	return c.baseURL + "/np/search?component=&q=" + url.QueryEscape(query) + "&channel=user"
}

// SearchOffers fetches the search page and reads the listed products in page order.
// Errors mention the search URL so the caller can still link out.
func (c *Client) SearchOffers(ctx context.Context, query string) ([]domain.OnlineOffer, error) {
	start := time.Now()
	offers, err := c.search(ctx, query)
	metrics.UpstreamRequestsTotal.WithLabelValues(providerName, metrics.Status(err)).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	return offers, err
}

func (c *Client) search(ctx context.Context, query string) ([]domain.OnlineOffer, error) {
	searchURL := c.SearchURL(query)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v (%s)", domain.ErrShoppingAPIFailure, err, searchURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: coupang status %d (%s)", domain.ErrRateLimited, resp.StatusCode, searchURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d (%s)", domain.ErrShoppingAPIFailure, resp.StatusCode, searchURL)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v (%s)", domain.ErrShoppingAPIFailure, err, searchURL)
	}

	offers := ParseSearchPage(doc, c.baseURL, c.maxResults)
	if len(offers) == 0 {
		c.logger.Info("no priced products on page", zap.String("query", query), zap.String("url", searchURL))
		return nil, fmt.Errorf("%w: no priced products (%s)", domain.ErrProductNotFound, searchURL)
	}

	for i := range offers {
		offers[i].SearchURL = searchURL
	}
	return offers, nil
}

// ParseSearchPage collects up to limit priced products from a search results document.
// A product is a link to /vp/products/...; its price comes from data-product-price,
// then strong.price-value, then an em whose class mentions sale.
func ParseSearchPage(doc *html.Node, baseURL string, limit int) []domain.OnlineOffer {
	offers := []domain.OnlineOffer{}
	seen := make(map[string]bool)

	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := attr(n, "href")
			if strings.HasPrefix(href, productPathPrefix) {
				if offer, ok := parseProduct(n, baseURL+href); ok && !seen[offer.URL] {
					seen[offer.URL] = true
					offers = append(offers, offer)
				}
				return len(offers) < limit
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(doc)

	return offers
}

func parseProduct(link *html.Node, productURL string) (domain.OnlineOffer, bool) {
	price := priceFromAttr(link)
	if price <= 0 {
		if n := findElement(link, atom.Strong, "price-value"); n != nil {
			price = parseWon(textContent(n))
		}
	}
	if price <= 0 {
		if n := findElement(link, atom.Em, "sale"); n != nil {
			price = parseWon(textContent(n))
		}
	}
	if price <= 0 {
		return domain.OnlineOffer{}, false
	}

	name := ""
	if n := findElement(link, atom.Div, "name"); n != nil {
		name = textContent(n)
	}
	if name == "" {
		name = strings.TrimSpace(attr(link, "title"))
	}
	if name == "" {
		if img := findElement(link, atom.Img, ""); img != nil {
			name = strings.TrimSpace(attr(img, "alt"))
		}
	}

	offer := domain.OnlineOffer{
		Title:    name,
		Price:    price,
		URL:      productURL,
		MallName: "쿠팡",
	}
	if img := findElement(link, atom.Img, ""); img != nil {
		offer.ImageURL = attr(img, "src")
	}
	return offer, true
}

// priceFromAttr reads data-product-price from the link, its subtree, or its list item ancestor
func priceFromAttr(link *html.Node) int64 {
	for n := link; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if v := attr(n, "data-product-price"); v != "" {
			return parseWon(v)
		}
		if n.DataAtom == atom.Li {
			break
		}
	}

	var found int64
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found > 0 {
			return
		}
		if n.Type == html.ElementNode {
			if v := attr(n, "data-product-price"); v != "" {
				found = parseWon(v)
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(link)
	return found
}

// findElement returns the first descendant with the tag whose class list has a token containing class
func findElement(root *html.Node, tag atom.Atom, class string) *html.Node {
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == tag && hasClass(child, class) {
			return child
		}
		if n := findElement(child, tag, class); n != nil {
			return n
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return true
	}
	for _, token := range strings.Fields(attr(n, "class")) {
		if strings.Contains(token, class) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent joins the text under n with single spaces
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// parseWon pulls the first run of digits and commas out of s: "12,900원" -> 12900
func parseWon(s string) int64 {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && (s[end] == ',' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	price, err := strconv.ParseInt(strings.ReplaceAll(s[start:end], ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return price
}
