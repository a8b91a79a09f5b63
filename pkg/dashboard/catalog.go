package dashboard

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CompetitorPrice is one competitor's current listing for a product.
type CompetitorPrice struct {
	Seller   string  `json:"seller"`
	Platform string  `json:"platform"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// Product is a catalog entry with its competitor price snapshot.
type Product struct {
	Name        string            `json:"name"`
	Platform    string            `json:"platform"`
	OwnPrice    float64           `json:"own_price"`
	Currency    string            `json:"currency"`
	Competitors []CompetitorPrice `json:"competitors"`
}

// Catalog holds the product list with competitor snapshots.
// It is loaded once at startup and read-only afterwards; MatchSnapshot is a
// pure lookup with no side effects.
type Catalog struct {
	products []Product
}

// LoadCatalog reads the product catalog from a JSON file.
// An empty path yields an empty catalog (enrichment disabled).
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return &Catalog{products: products}, nil
}

// NewCatalog builds a catalog from an in-memory product list.
func NewCatalog(products []Product) *Catalog {
	return &Catalog{products: products}
}

// MatchSnapshot looks up the first product whose name appears in the user's
// text (case-insensitive substring) and formats its competitor snapshot as a
// context block for the model. Returns "" when nothing matches.
func (c *Catalog) MatchSnapshot(text string) string {
	lower := strings.ToLower(text)
	for _, p := range c.products {
		if p.Name == "" || !strings.Contains(lower, strings.ToLower(p.Name)) {
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "[COMPETITOR SNAPSHOT] %s (our price: %.2f %s, platform: %s)\n",
			p.Name, p.OwnPrice, p.Currency, p.Platform)
		for _, cp := range p.Competitors {
			fmt.Fprintf(&sb, "- %s on %s: %.2f %s\n", cp.Seller, cp.Platform, cp.Price, cp.Currency)
		}
		return sb.String()
	}
	return ""
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.products)
}
