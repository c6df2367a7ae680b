package banner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultCatalogURL = "https://www.allkeyshop.com/api/v2-1-250304/vaks.php"

	catalogFields = "assets.cover,name,offers.price,offers.merchant.name," +
		"offers.stock_status,offers.voucher.code,offers.voucher.discount"
)

// Quote is a single resolved price point.
type Quote struct {
	Display  string `json:"display"`
	Merchant string `json:"merchant"`
}

// Prices carries the two price points the comparison banner shows.
type Prices struct {
	Best  Quote `json:"best"`
	Steam Quote `json:"steam"`
}

// PriceClient queries the AllKeyShop catalog API for market and store prices.
type PriceClient struct {
	catalogURL string
	httpClient *http.Client
	printer    *message.Printer
}

type PriceOption func(*PriceClient)

// WithCatalogURL overrides the catalog endpoint, mainly for tests.
func WithCatalogURL(u string) PriceOption {
	return func(c *PriceClient) {
		if u != "" {
			c.catalogURL = u
		}
	}
}

func NewPriceClient(opts ...PriceOption) *PriceClient {
	c := &PriceClient{
		catalogURL: defaultCatalogURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type catalogResponse struct {
	Products []catalogProduct `json:"products"`
}

type catalogProduct struct {
	Name   string         `json:"name"`
	Offers []catalogOffer `json:"offers"`
}

type catalogOffer struct {
	Price       float64 `json:"price"`
	StockStatus string  `json:"stock_status"`
	Merchant    struct {
		Name string `json:"name"`
	} `json:"merchant"`
}

// FetchBest returns the cheapest in-stock market offer for the game page.
// When nothing is in stock the cheapest offer overall is used.
func (c *PriceClient) FetchBest(ctx context.Context, pageURL string) (Quote, error) {
	offers, err := c.fetchOffers(ctx, pageURL, nil)
	if err != nil {
		return Quote{}, err
	}

	inStock := make([]catalogOffer, 0, len(offers))
	for _, o := range offers {
		if o.StockStatus == "in_stock" {
			inStock = append(inStock, o)
		}
	}
	if len(inStock) == 0 {
		inStock = offers
	}
	if len(inStock) == 0 {
		return Quote{}, fmt.Errorf("no offers returned for %s", pageURL)
	}

	sort.Slice(inStock, func(i, j int) bool { return inStock[i].Price < inStock[j].Price })
	best := inStock[0]
	merchant := best.Merchant.Name
	if merchant == "" {
		merchant = "Unknown"
	}
	return Quote{Display: c.formatEUR(best.Price), Merchant: merchant}, nil
}

// FetchSteam returns the official store price for the game page, falling back
// to the first offer when no Steam merchant appears in the catalog.
func (c *PriceClient) FetchSteam(ctx context.Context, pageURL string) (Quote, error) {
	offers, err := c.fetchOffers(ctx, pageURL, url.Values{
		"officialOffersOnly": []string{"1"},
		"offers.merchant.id": []string{"1"},
	})
	if err != nil {
		return Quote{}, err
	}
	if len(offers) == 0 {
		return Quote{}, fmt.Errorf("no offers returned for %s", pageURL)
	}

	for _, o := range offers {
		if o.Merchant.Name == "Steam" {
			return Quote{Display: c.formatEUR(o.Price), Merchant: "Steam"}, nil
		}
	}
	first := offers[0]
	merchant := first.Merchant.Name
	if merchant == "" {
		merchant = "Official Store"
	}
	return Quote{Display: c.formatEUR(first.Price), Merchant: merchant}, nil
}

func (c *PriceClient) fetchOffers(ctx context.Context, pageURL string, extra url.Values) ([]catalogOffer, error) {
	if !strings.HasSuffix(pageURL, "/") {
		pageURL += "/"
	}

	params := url.Values{
		"action":       []string{"CatalogV2"},
		"locale":       []string{"en"},
		"currency":     []string{"EUR"},
		"price_mode":   []string{"price_card"},
		"sort_order":   []string{"desc"},
		"pagenum":      []string{"1"},
		"per_page":     []string{"24"},
		"aks_links":    []string{pageURL},
		"fields":       []string{catalogFields},
		"_app.version": []string{"250415"},
	}
	for k, vs := range extra {
		params[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.catalogURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://www.allkeyshop.com")
	req.Header.Set("Referer", "https://www.allkeyshop.com/blog/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, data)
	}

	var result catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}
	if len(result.Products) == 0 {
		return nil, fmt.Errorf("no products returned for %s", pageURL)
	}
	return result.Products[0].Offers, nil
}

func (c *PriceClient) formatEUR(v float64) string {
	return c.printer.Sprintf("%v", currency.Symbol(currency.EUR.Amount(v)))
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9-]`)

// PageURL derives the catalog comparison-page URL for a game title.
func PageURL(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, "&", "and")
	slug = strings.ReplaceAll(slug, " - ", "-")
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugStripRe.ReplaceAllString(slug, "")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "unknown-game"
	}
	return fmt.Sprintf("https://www.allkeyshop.com/blog/buy-%s-cd-key-compare-prices/", slug)
}
