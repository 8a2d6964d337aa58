// Package metrics derives the D2C snapshot figures (profitability, marketing
// efficiency, scaling limits) from one period's raw inputs.
//
// Compute is pure and total: it has no state, performs no I/O and returns a
// finite, fully populated record for any finite input, including an empty one.
// Every major figure carries a receipt whose lines sum to the figure.
package metrics

import (
	"strconv"

	"github.com/signalroi/signalroi/pkg/models"
)

// Metrics is the derived record for one input snapshot.
type Metrics struct {
	// Profitability
	NetSalesExGST float64 `json:"netSalesExGst" yaml:"net_sales_ex_gst"`
	NetRevenue    float64 `json:"netRevenue"    yaml:"net_revenue"`
	COGS          float64 `json:"cogs"          yaml:"cogs"`
	Logistics     float64 `json:"logistics"     yaml:"logistics"`
	CMDollars     float64 `json:"cmDollars"     yaml:"cm_dollars"`
	CMPercent     float64 `json:"cmPercent"     yaml:"cm_percent"`
	EBITDA        float64 `json:"ebitda"        yaml:"ebitda"`

	// Efficiency
	MER                float64 `json:"mer"                yaml:"mer"`
	BlendedCAC         float64 `json:"blendedCac"         yaml:"blended_cac"`
	CostPerOrder       float64 `json:"costPerOrder"       yaml:"cost_per_order"`
	AdSpendTotal       float64 `json:"adSpendTotal"       yaml:"ad_spend_total"`
	AdSpendProspecting float64 `json:"adSpendProspecting" yaml:"ad_spend_prospecting"`

	// Scaling
	VariableProfitPerOrder float64 `json:"variableProfitPerOrder" yaml:"variable_profit_per_order"`
	OpexPerOrder           float64 `json:"opexPerOrder"           yaml:"opex_per_order"`
	SafeMaxCPA             float64 `json:"safeMaxCpa"             yaml:"safe_max_cpa"`
	NetBurn                float64 `json:"netBurn"                yaml:"net_burn"`
	RunwayMonths           float64 `json:"runwayMonths"           yaml:"runway_months"`

	Breakdowns Breakdowns `json:"breakdowns" yaml:"breakdowns"`
}

// Breakdowns holds the receipt of each figure. NetRevenue, CM, EBITDA,
// SafeCPA and Burn obey the sum identity; the rest are numerator/divisor pairs.
type Breakdowns struct {
	NetRevenue   []Line `json:"netRevenue"   yaml:"net_revenue"`
	CM           []Line `json:"cm"           yaml:"cm"`
	EBITDA       []Line `json:"ebitda"       yaml:"ebitda"`
	SafeCPA      []Line `json:"safeCpa"      yaml:"safe_cpa"`
	Burn         []Line `json:"burn"         yaml:"burn"`
	MER          []Line `json:"mer"          yaml:"mer"`
	BlendedCAC   []Line `json:"blendedCac"   yaml:"blended_cac"`
	CostPerOrder []Line `json:"costPerOrder" yaml:"cost_per_order"`
}

// Receipt pairs a sum-identity receipt with the figure it explains.
type Receipt struct {
	Name  string
	Lines []Line
	Value float64
}

// Major returns the five receipts whose lines sum to their figure.
func (m Metrics) Major() []Receipt {
	return []Receipt{
		{"netRevenue", m.Breakdowns.NetRevenue, m.NetRevenue},
		{"cm", m.Breakdowns.CM, m.CMDollars},
		{"ebitda", m.Breakdowns.EBITDA, m.EBITDA},
		{"safeCpa", m.Breakdowns.SafeCPA, m.SafeMaxCPA},
		{"burn", m.Breakdowns.Burn, m.NetBurn},
	}
}

// Compute derives every figure and receipt from in.
func Compute(in models.Input) Metrics {
	r := in.Resolve()

	gstMultiplier := 1 + r.GSTRatePercent/100
	if gstMultiplier == 0 {
		// gst_rate_percent of -100 would divide by zero; extract nothing.
		gstMultiplier = 1
	}
	netSalesExGST := r.GrossSalesInclGST / gstMultiplier
	netRevenue := netSalesExGST - r.DiscountsTotal - r.ReturnsValueExGST - r.FeesCommissions

	// Variable costs only exist when something was sold.
	var cogs, logistics float64
	if r.UnitsSold > 0 {
		cogs = r.UnitsSold*r.CostMfgPerUnit + r.PackagingConsumablesTotal
		logistics = r.ShippingExpenseForward + r.RTOPenaltyTotal + r.WarehousePickPackTotal + r.PaymentGatewayFees
	}

	cmDollars := netRevenue - cogs - logistics
	var cmPercent float64
	if netRevenue > 0 {
		cmPercent = cmDollars / netRevenue * 100
	}

	ebitda := cmDollars - r.AdSpendTotal - r.TotalFixedOpex
	netBurn := (r.TotalFixedOpex + r.AdSpendTotal + r.InventoryPurchasedValue) - cmDollars

	orders := orderDivisor(r.TotalOrders)
	newOrders := orderDivisor(r.OrdersNewCustomer)

	variableProfitPerOrder := cmDollars / orders
	opexPerOrder := r.TotalFixedOpex / orders
	safeMaxCPA := variableProfitPerOrder - opexPerOrder - r.TargetProfitPerOrder

	var mer float64
	if r.AdSpendTotal > 0 {
		mer = netRevenue / r.AdSpendTotal
	}
	blendedCAC := r.AdSpendTotal / newOrders
	costPerOrder := r.AdSpendTotal / orders

	var runway float64
	if netBurn > 0 && r.CashOnHand > 0 {
		runway = r.CashOnHand / netBurn
	}

	return Metrics{
		NetSalesExGST:          netSalesExGST,
		NetRevenue:             netRevenue,
		COGS:                   cogs,
		Logistics:              logistics,
		CMDollars:              cmDollars,
		CMPercent:              cmPercent,
		EBITDA:                 ebitda,
		MER:                    mer,
		BlendedCAC:             blendedCAC,
		CostPerOrder:           costPerOrder,
		AdSpendTotal:           r.AdSpendTotal,
		AdSpendProspecting:     r.AdSpendProspecting,
		VariableProfitPerOrder: variableProfitPerOrder,
		OpexPerOrder:           opexPerOrder,
		SafeMaxCPA:             safeMaxCPA,
		NetBurn:                netBurn,
		RunwayMonths:           runway,
		Breakdowns: Breakdowns{
			NetRevenue: []Line{
				base("Gross Sales (Inc GST)", r.GrossSalesInclGST),
				sub("Less GST ("+strconv.FormatFloat(r.GSTRatePercent, 'f', -1, 64)+"%)", -(r.GrossSalesInclGST - netSalesExGST)),
				sub("Less Discounts", -r.DiscountsTotal),
				sub("Less Returns", -r.ReturnsValueExGST),
				sub("Less Fees & Commissions", -r.FeesCommissions),
			},
			CM: []Line{
				base("Net Revenue", netRevenue),
				sub("COGS & Packaging", -cogs),
				sub("Logistics, RTO & Fees", -logistics),
			},
			EBITDA: []Line{
				base("Contribution Margin", cmDollars),
				sub("Marketing Spend", -r.AdSpendTotal),
				sub("Fixed OpEx", -r.TotalFixedOpex),
			},
			SafeCPA: []Line{
				base("Contribution / Order", variableProfitPerOrder),
				sub("Fixed OpEx / Order", -opexPerOrder),
				sub("Target Profit / Order", -r.TargetProfitPerOrder),
			},
			Burn: []Line{
				base("Fixed OpEx", r.TotalFixedOpex),
				add("Ad Spend", r.AdSpendTotal),
				add("Inventory Purchase", r.InventoryPurchasedValue),
				sub("Less: Contrib. Margin", -cmDollars),
			},
			MER: []Line{
				base("Net Revenue", netRevenue),
				divisor("÷ Total Ad Spend", r.AdSpendTotal),
			},
			BlendedCAC: []Line{
				base("Total Ad Spend", r.AdSpendTotal),
				divisor("÷ New Orders", newOrders),
			},
			CostPerOrder: []Line{
				base("Total Ad Spend", r.AdSpendTotal),
				divisor("÷ Total Orders", orders),
			},
		},
	}
}

// orderDivisor guards an order count used as a denominator. A zero count
// becomes 1, so per-order figures stay finite but understate cost when the
// true count is zero.
func orderDivisor(count float64) float64 {
	if count == 0 {
		return 1
	}
	return count
}
