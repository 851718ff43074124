// README: Fare rate definition for each trip kind and category.
package pricing

import "ridedesk/internal/types"

type Rate struct {
	Kind     string
	Category string
	BaseFare int64
	PerKm    int64
	MinFare  int64
	Currency string
}

// Quote is a full fare estimate as shown to a requester before booking.
type Quote struct {
	DistanceKm           float64     `json:"distance_km"`
	EstimatedDurationMin int         `json:"estimated_duration_min"`
	Fare                 types.Money `json:"fare"`
}

const (
	defaultCurrency = "NGN"
	minDistanceKm   = 1.0
	minutesPerKm    = 2.0
)

var defaultRates = map[string]Rate{
	"ride/economy":      {Kind: "ride", Category: "economy", BaseFare: 500, PerKm: 150, MinFare: 700, Currency: defaultCurrency},
	"ride/suv":          {Kind: "ride", Category: "suv", BaseFare: 1000, PerKm: 250, MinFare: 1500, Currency: defaultCurrency},
	"delivery/standard": {Kind: "delivery", Category: "standard", BaseFare: 400, PerKm: 100, MinFare: 600, Currency: defaultCurrency},
	"delivery/fragile":  {Kind: "delivery", Category: "fragile", BaseFare: 600, PerKm: 150, MinFare: 900, Currency: defaultCurrency},
}

func rateKey(kind, category string) string {
	return kind + "/" + category
}
