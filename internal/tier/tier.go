package tier

// Perks are discount percentages granted by the operator's tier.
type Perks struct {
	MarketDiscount      int `json:"market_discount" yaml:"market_discount"`
	HubDiscount         int `json:"hub_discount" yaml:"hub_discount"`
	DestinationDiscount int `json:"destination_discount" yaml:"destination_discount"`
}

type Tier struct {
	Level      int    `json:"level"`
	Name       string `json:"name"`
	Reputation int    `json:"reputation"` // minimum reputation to reach the tier
	Perks      Perks  `json:"perks"`
}

// Default is ordered by ascending reputation.
var Default = []Tier{
	{Level: 1, Name: "Regional", Reputation: 0},
	{Level: 2, Name: "National", Reputation: 100, Perks: Perks{MarketDiscount: 2}},
	{Level: 3, Name: "Continental", Reputation: 400, Perks: Perks{MarketDiscount: 4, HubDiscount: 5}},
	{Level: 4, Name: "Intercontinental", Reputation: 1200, Perks: Perks{MarketDiscount: 6, HubDiscount: 10, DestinationDiscount: 5}},
	{Level: 5, Name: "Global", Reputation: 3000, Perks: Perks{MarketDiscount: 10, HubDiscount: 15, DestinationDiscount: 10}},
}

// ForReputation returns the highest tier in table whose threshold is met.
func ForReputation(table []Tier, reputation int) Tier {
	if len(table) == 0 {
		return Tier{Level: 1}
	}
	cur := table[0]
	for _, t := range table[1:] {
		if reputation >= t.Reputation {
			cur = t
		}
	}
	return cur
}

// Next returns the tier after level, if any.
func Next(table []Tier, level int) (Tier, bool) {
	for _, t := range table {
		if t.Level == level+1 {
			return t, true
		}
	}
	return Tier{}, false
}
