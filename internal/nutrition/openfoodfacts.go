// internal/nutrition/openfoodfacts.go
package nutrition

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"mcp-food-log/internal/models"
)

const (
	DefaultBaseURL   = "https://world.openfoodfacts.org"
	DefaultUserAgent = "mcp-food-log/1.0"
	searchPath       = "/cgi/search.pl"

	// upper bound on a search response body
	maxResponseBytes = 4 << 20
)

// Nutriment keys read from the first product, per 100g.
const (
	keyEnergyKcal = "energy-kcal_100g"
	keyProteins   = "proteins_100g"
	keyCarbs      = "carbohydrates_100g"
	keyFat        = "fat_100g"
	keyFiber      = "fiber_100g"
)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client looks up per-100g nutrient values on Open Food Facts.
// Every call hits the network; nothing is cached.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *zap.Logger
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPer100g searches for food and reads the first result's nutriments.
// The bool is false when there is no usable data: no products, transport
// failure, a non-200 status or a malformed body all count the same.
func (c *Client) FetchPer100g(ctx context.Context, food string) (models.NutrientProfile, bool) {
	body, err := c.search(ctx, food)
	if err != nil {
		c.logger.Warn("nutrition lookup failed", zap.String("food", food), zap.Error(err))
		return models.NutrientProfile{}, false
	}

	profile, ok := parseSearchResponse(body)
	if !ok {
		c.logger.Debug("no nutrition data", zap.String("food", food))
		return models.NutrientProfile{}, false
	}
	if profile.Name == "" {
		profile.Name = food
	}
	return profile, true
}

func (c *Client) search(ctx context.Context, food string) ([]byte, error) {
	q := url.Values{}
	q.Set("search_terms", food)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", "1")
	endpoint := c.baseURL + searchPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func parseSearchResponse(body []byte) (models.NutrientProfile, bool) {
	if !gjson.ValidBytes(body) {
		return models.NutrientProfile{}, false
	}
	products := gjson.GetBytes(body, "products")
	if !products.IsArray() || len(products.Array()) == 0 {
		return models.NutrientProfile{}, false
	}

	first := products.Array()[0]
	n := first.Get("nutriments")
	return models.NutrientProfile{
		Name:     strings.TrimSpace(first.Get("product_name").String()),
		Calories: nutriment(n, keyEnergyKcal),
		Protein:  nutriment(n, keyProteins),
		Carbs:    nutriment(n, keyCarbs),
		Fat:      nutriment(n, keyFat),
		Fiber:    nutriment(n, keyFiber),
	}, true
}

// nutriment reads a numeric or numeric-string field; anything else is 0.
func nutriment(n gjson.Result, key string) float64 {
	v := n.Get(key)
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		f = v.Float()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
