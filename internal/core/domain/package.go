package domain

import "github.com/shopspring/decimal"

// CoinPackage is a purchasable bundle of coins.
type CoinPackage struct {
	ID       string          `json:"id"`
	Coins    int64           `json:"coins"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

var coinPackages = map[string]CoinPackage{
	"starter": {ID: "starter", Coins: 100, Price: decimal.RequireFromString("0.99"), Currency: "USD"},
	"popular": {ID: "popular", Coins: 500, Price: decimal.RequireFromString("4.99"), Currency: "USD"},
	"value":   {ID: "value", Coins: 1000, Price: decimal.RequireFromString("8.99"), Currency: "USD"},
	"premium": {ID: "premium", Coins: 5000, Price: decimal.RequireFromString("39.99"), Currency: "USD"},
}

// LookupPackage returns the coin package with the given id.
func LookupPackage(id string) (CoinPackage, bool) {
	p, ok := coinPackages[id]
	return p, ok
}

// UnitPrice is the price of a single coin in the package, rounded to 4 places.
func (p CoinPackage) UnitPrice() decimal.Decimal {
	return p.Price.Div(decimal.NewFromInt(p.Coins)).Round(4)
}

// Platform is the store a purchase was made in.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)
