package report

// Definition is the plain-language explanation shown under a card.
type Definition struct {
	Title   string
	Insight string
	GoodIf  string
}

// Definitions maps a metric key to its explanation.
var Definitions = map[string]Definition{
	"netRevenue": {
		Title:   "Net Revenue",
		Insight: "What you actually keep from sales after GST, discounts, returns and marketplace fees. This is the real top line.",
	},
	"cmDollars": {
		Title:   "Contribution Margin",
		Insight: "Money left after paying for the product and getting it to the customer. It has to cover marketing and overhead.",
		GoodIf:  "above 40% of net revenue",
	},
	"ebitda": {
		Title:   "EBITDA",
		Insight: "Operating profit after marketing and fixed costs. Negative means the business loses money every month it runs like this.",
		GoodIf:  "positive",
	},
	"mer": {
		Title:   "MER (Marketing Efficiency)",
		Insight: "Net revenue generated for every rupee of ad spend, across all channels.",
		GoodIf:  "3x or higher",
	},
	"blendedCac": {
		Title:   "Blended CAC",
		Insight: "Ad spend divided by first-time orders: the cost of acquiring one new customer.",
		GoodIf:  "below Safe Max CPA",
	},
	"costPerOrder": {
		Title:   "Cost Per Order",
		Insight: "Ad spend spread over every order, new and repeat.",
	},
	"safeMaxCpa": {
		Title:   "Safe Max CPA",
		Insight: "The most you can pay to win an order while still covering overhead and your profit target. Bid above this and growth burns cash.",
		GoodIf:  "higher than Cost Per Order",
	},
	"netBurn": {
		Title:   "Net Cash Burn",
		Insight: "Cash going out (overhead, ads, inventory) minus contribution coming in. Positive means the bank balance is shrinking.",
		GoodIf:  "zero or negative",
	},
}

func definition(key string) Definition {
	if d, ok := Definitions[key]; ok {
		return d
	}
	return Definition{Title: key, Insight: "No definition found."}
}
