package dashboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoProducts() []Product {
	return []Product{
		{
			Name:     "Acme Wireless Mouse",
			Platform: "amazon",
			OwnPrice: 24.99,
			Currency: "USD",
			Competitors: []CompetitorPrice{
				{Seller: "TechBarn", Platform: "amazon", Price: 22.50, Currency: "USD"},
				{Seller: "GadgetHub", Platform: "ebay", Price: 26.00, Currency: "USD"},
			},
		},
		{
			Name:     "Acme USB-C Hub",
			Platform: "shopify",
			OwnPrice: 49.00,
			Currency: "USD",
		},
	}
}

func TestMatchSnapshotCaseInsensitive(t *testing.T) {
	cat := NewCatalog(demoProducts())

	block := cat.MatchSnapshot("why is the ACME WIRELESS MOUSE selling badly?")
	require.NotEmpty(t, block)
	assert.Contains(t, block, "[COMPETITOR SNAPSHOT] Acme Wireless Mouse")
	assert.Contains(t, block, "our price: 24.99 USD")
	assert.Contains(t, block, "- TechBarn on amazon: 22.50 USD")
	assert.Contains(t, block, "- GadgetHub on ebay: 26.00 USD")
}

func TestMatchSnapshotFirstMatchWins(t *testing.T) {
	cat := NewCatalog(demoProducts())

	// Both product names appear; only the first catalog entry is formatted.
	block := cat.MatchSnapshot("compare acme wireless mouse against acme usb-c hub")
	assert.Contains(t, block, "Acme Wireless Mouse")
	assert.NotContains(t, block, "Acme USB-C Hub")
}

func TestMatchSnapshotNoMatch(t *testing.T) {
	cat := NewCatalog(demoProducts())

	assert.Empty(t, cat.MatchSnapshot("what were sales like last quarter?"))
	assert.Empty(t, (&Catalog{}).MatchSnapshot("acme wireless mouse"))
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `[{"name":"Acme Webcam","platform":"amazon","own_price":59.90,"currency":"USD",
		"competitors":[{"seller":"CamStore","platform":"amazon","price":54.00,"currency":"USD"}]}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.Contains(t, cat.MatchSnapshot("price the acme webcam"), "CamStore")
}

func TestLoadCatalogEmptyPathDisablesEnrichment(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
