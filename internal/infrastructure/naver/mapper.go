package naver

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"golang.org/x/net/html"
)

// shoppingSearchURL is the public results page linked from every offer
const shoppingSearchURL = "https://search.shopping.naver.com/search/all"

var whitespaceRegex = regexp.MustCompile(`\s+`)

// MapToOffers converts search items to offers, dropping items without a usable price
func MapToOffers(items []Item, query string) []domain.OnlineOffer {
	searchURL := SearchURL(query)

	offers := make([]domain.OnlineOffer, 0, len(items))
	for _, item := range items {
		price := ParsePrice(item.LPrice)
		if price <= 0 {
			continue
		}
		offers = append(offers, domain.OnlineOffer{
			Title:     StripTags(item.Title),
			Price:     price,
			URL:       item.Link,
			MallName:  item.MallName,
			ImageURL:  item.Image,
			SearchURL: searchURL,
		})
	}
	return offers
}

// StripTags removes markup from a title and decodes entities: "<b>삼다수</b> &amp; 물" -> "삼다수 & 물"
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(whitespaceRegex.ReplaceAllString(b.String(), " "))
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// ParsePrice reads a won amount like "12900" or "12,900"; anything else is 0
func ParsePrice(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	price, err := strconv.ParseInt(s, 10, 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

// SearchURL is the shopping results page for a query
func SearchURL(query string) string {
	return shoppingSearchURL + "?query=" + url.QueryEscape(query)
}
