package metrics

import (
	"encoding/json"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalroi/signalroi/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

var f = models.Float

// scenarioInput is the worked example with explicit zero commissions.
func scenarioInput() models.Input {
	return models.Input{
		GrossSalesInclGST:         f(5000000),
		GSTRatePercent:            f(18),
		DiscountsTotal:            f(200000),
		ReturnsValueExGST:         f(150000),
		FeesCommissions:           f(0),
		TotalOrders:               f(2500),
		OrdersNewCustomer:         f(1800),
		UnitsSold:                 f(3000),
		CostMfgPerUnit:            f(400),
		PackagingConsumablesTotal: f(50000),
		ShippingExpenseForward:    f(250000),
		RTOPenaltyTotal:           f(120000),
		WarehousePickPackTotal:    f(75000),
		PaymentGatewayFees:        f(100000),
		AdSpendTotal:              f(1200000),
		TotalFixedOpex:            f(800000),
		TargetProfitPerOrder:      f(200),
		InventoryPurchasedValue:   f(1500000),
	}
}

func randomInput(rng *rand.Rand) models.Input {
	money := func() *float64 {
		// Mostly positive, sometimes zero or negative, sometimes absent.
		switch rng.Intn(10) {
		case 0:
			return nil
		case 1:
			return f(0)
		case 2:
			return f(-rng.Float64() * 1e5)
		default:
			return f(rng.Float64() * 1e7)
		}
	}
	count := func() *float64 {
		switch rng.Intn(6) {
		case 0:
			return nil
		case 1:
			return f(0)
		default:
			return f(float64(rng.Intn(10000)))
		}
	}
	return models.Input{
		GrossSalesInclGST:         money(),
		GSTRatePercent:            f(float64(rng.Intn(30))),
		DiscountsTotal:            money(),
		ReturnsValueExGST:         money(),
		FeesCommissions:           money(),
		TotalOrders:               count(),
		OrdersNewCustomer:         count(),
		UnitsSold:                 count(),
		CostMfgPerUnit:            money(),
		PackagingConsumablesTotal: money(),
		InventoryPurchasedValue:   money(),
		ShippingExpenseForward:    money(),
		RTOPenaltyTotal:           money(),
		WarehousePickPackTotal:    money(),
		PaymentGatewayFees:        money(),
		AdSpendTotal:              money(),
		AdSpendProspecting:        money(),
		TotalFixedOpex:            money(),
		TargetProfitPerOrder:      money(),
		CashOnHand:                money(),
	}
}

func tolerance(v float64) float64 {
	return 1e-6 * (1 + math.Abs(v))
}

func assertFinite(t *testing.T, m Metrics) {
	t.Helper()
	v := reflect.ValueOf(m)
	for i := 0; i < v.NumField(); i++ {
		fv := v.Field(i)
		if fv.Kind() != reflect.Float64 {
			continue
		}
		x := fv.Float()
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "%s is not finite: %v", v.Type().Field(i).Name, x)
	}
}

// ════════════════════════════════════════════════════════════════════
// Concrete scenario
// ════════════════════════════════════════════════════════════════════

func TestComputeScenario(t *testing.T) {
	m := Compute(scenarioInput())

	assert.InDelta(t, 4237288.14, m.NetSalesExGST, 0.01)
	assert.InDelta(t, 3887288.14, m.NetRevenue, 0.01)
	assert.InDelta(t, 1250000, m.COGS, 1e-9)
	assert.InDelta(t, 545000, m.Logistics, 1e-9)
	assert.InDelta(t, 2092288.14, m.CMDollars, 0.01)
	assert.InDelta(t, 53.82, m.CMPercent, 0.01)
	assert.InDelta(t, 92288.14, m.EBITDA, 0.01)
	assert.InDelta(t, 1407711.86, m.NetBurn, 0.01)
	assert.InDelta(t, 836.92, m.VariableProfitPerOrder, 0.01)
	assert.InDelta(t, 320, m.OpexPerOrder, 1e-9)
	assert.InDelta(t, 316.92, m.SafeMaxCPA, 0.01)
	assert.InDelta(t, 3.24, m.MER, 0.005)
	assert.InDelta(t, 666.67, m.BlendedCAC, 0.005)
	assert.Equal(t, 480.0, m.CostPerOrder)
	assert.Equal(t, 1200000.0, m.AdSpendTotal)
	assert.InDelta(t, 960000, m.AdSpendProspecting, 1e-9)
	assert.Equal(t, 0.0, m.RunwayMonths, "no cash_on_hand means no runway figure")
}

func TestComputeDefaultInput(t *testing.T) {
	m := Compute(models.DefaultInput())
	assert.Equal(t, 800000.0, m.AdSpendProspecting)
	assert.InDelta(t, 2500000/1407711.86, m.RunwayMonths, 1e-6)
}

func TestComputeBreakdownLabels(t *testing.T) {
	m := Compute(scenarioInput())

	labels := func(lines []Line) []string {
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = l.Label
		}
		return out
	}

	assert.Equal(t, []string{"Gross Sales (Inc GST)", "Less GST (18%)", "Less Discounts", "Less Returns", "Less Fees & Commissions"}, labels(m.Breakdowns.NetRevenue))
	assert.Equal(t, []string{"Net Revenue", "COGS & Packaging", "Logistics, RTO & Fees"}, labels(m.Breakdowns.CM))
	assert.Equal(t, []string{"Contribution Margin", "Marketing Spend", "Fixed OpEx"}, labels(m.Breakdowns.EBITDA))
	assert.Equal(t, []string{"Contribution / Order", "Fixed OpEx / Order", "Target Profit / Order"}, labels(m.Breakdowns.SafeCPA))
	assert.Equal(t, []string{"Fixed OpEx", "Ad Spend", "Inventory Purchase", "Less: Contrib. Margin"}, labels(m.Breakdowns.Burn))
	assert.Equal(t, []string{"Net Revenue", "÷ Total Ad Spend"}, labels(m.Breakdowns.MER))
	assert.Equal(t, []string{"Total Ad Spend", "÷ New Orders"}, labels(m.Breakdowns.BlendedCAC))
	assert.Equal(t, []string{"Total Ad Spend", "÷ Total Orders"}, labels(m.Breakdowns.CostPerOrder))

	assert.Equal(t, KindAdd, m.Breakdowns.Burn[1].Kind)
	assert.Equal(t, KindSubText, m.Breakdowns.BlendedCAC[1].Kind)
	assert.Equal(t, 1800.0, m.Breakdowns.BlendedCAC[1].Value)
}

func TestComputeGSTLabelKeepsFraction(t *testing.T) {
	m := Compute(models.Input{GrossSalesInclGST: f(1125), GSTRatePercent: f(12.5)})
	assert.Equal(t, "Less GST (12.5%)", m.Breakdowns.NetRevenue[1].Label)
	assert.InDelta(t, 1000, m.NetSalesExGST, 1e-9)
}

// ════════════════════════════════════════════════════════════════════
// Properties
// ════════════════════════════════════════════════════════════════════

func TestBreakdownSumIdentity(t *testing.T) {
	inputs := map[string]models.Input{
		"scenario": scenarioInput(),
		"default":  models.DefaultInput(),
		"empty":    {},
		"negative": {DiscountsTotal: f(-5000), AdSpendTotal: f(-100), TotalOrders: f(-2), UnitsSold: f(10), CostMfgPerUnit: f(-3)},
		"no units": {GrossSalesInclGST: f(118000), PackagingConsumablesTotal: f(5000), ShippingExpenseForward: f(4000)},
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		inputs["random-"+string(rune('a'+i%26))+string(rune('0'+i/26))] = randomInput(rng)
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			m := Compute(in)
			for _, r := range m.Major() {
				require.NotEmpty(t, r.Lines, r.Name)
				assert.Equal(t, KindBase, r.Lines[0].Kind, "%s must start with a base line", r.Name)
				assert.InDelta(t, r.Value, Sum(r.Lines), tolerance(r.Value), "%s receipt does not sum", r.Name)
			}
			assertFinite(t, m)
		})
	}
}

func TestZeroDivisionSafety(t *testing.T) {
	t.Run("no ad spend", func(t *testing.T) {
		m := Compute(models.Input{GrossSalesInclGST: f(118000), AdSpendTotal: f(0)})
		assert.Equal(t, 0.0, m.MER)
		assert.Equal(t, 0.0, m.BlendedCAC)
		assert.Equal(t, 0.0, m.CostPerOrder)
	})

	t.Run("orders absent", func(t *testing.T) {
		m := Compute(models.Input{AdSpendTotal: f(5000), TotalFixedOpex: f(1000), GrossSalesInclGST: f(11800), UnitsSold: f(1)})
		assert.Equal(t, 5000.0, m.BlendedCAC)
		assert.Equal(t, 5000.0, m.CostPerOrder)
		assert.Equal(t, 1000.0, m.OpexPerOrder)
		assert.Equal(t, 1.0, m.Breakdowns.CostPerOrder[1].Value)
		assertFinite(t, m)
	})

	t.Run("orders explicitly zero", func(t *testing.T) {
		m := Compute(models.Input{AdSpendTotal: f(5000), TotalOrders: f(0), OrdersNewCustomer: f(0)})
		assert.Equal(t, 5000.0, m.BlendedCAC)
		assert.Equal(t, 5000.0, m.CostPerOrder)
		assertFinite(t, m)
	})

	t.Run("non-positive revenue", func(t *testing.T) {
		m := Compute(models.Input{DiscountsTotal: f(100)})
		assert.Equal(t, -100.0, m.NetRevenue)
		assert.Equal(t, 0.0, m.CMPercent)
	})

	t.Run("gst of minus one hundred", func(t *testing.T) {
		m := Compute(models.Input{GrossSalesInclGST: f(1000), GSTRatePercent: f(-100)})
		assertFinite(t, m)
		assert.Equal(t, 1000.0, m.NetSalesExGST)
	})

	t.Run("empty input", func(t *testing.T) {
		m := Compute(models.Input{})
		assertFinite(t, m)
		assert.Equal(t, 0.0, m.NetRevenue)
		assert.Equal(t, 0.0, m.SafeMaxCPA)
	})
}

func TestZeroUnitsSkipVariableCosts(t *testing.T) {
	in := scenarioInput()
	in.UnitsSold = f(0)
	m := Compute(in)
	assert.Equal(t, 0.0, m.COGS)
	assert.Equal(t, 0.0, m.Logistics)
	assert.Equal(t, m.NetRevenue, m.CMDollars)
}

func TestGSTExtractionRoundTrip(t *testing.T) {
	for _, gross := range []float64{0, 1, 999.99, 5000000, 123456789.5} {
		for _, rate := range []float64{5, 12, 18, 28, 0.25} {
			m := Compute(models.Input{GrossSalesInclGST: f(gross), GSTRatePercent: f(rate)})
			assert.InDelta(t, gross, m.NetSalesExGST*(1+rate/100), tolerance(gross))
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		in := randomInput(rng)
		a, b := Compute(in), Compute(in)
		require.True(t, reflect.DeepEqual(a, b))

		ja, err := json.Marshal(a)
		require.NoError(t, err)
		jb, err := json.Marshal(b)
		require.NoError(t, err)
		assert.Equal(t, ja, jb)
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	in := scenarioInput()
	before, err := json.Marshal(in)
	require.NoError(t, err)
	Compute(in)
	after, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestComputeConcurrentCallers(t *testing.T) {
	in := scenarioInput()
	want := Compute(in)

	var wg sync.WaitGroup
	results := make([]Metrics, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Compute(in)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestAdSpendMonotonicity(t *testing.T) {
	prev := Compute(scenarioInput())
	for _, spend := range []float64{1300000, 1500000, 2000000, 5000000} {
		in := scenarioInput()
		in.AdSpendTotal = f(spend)
		m := Compute(in)

		assert.Less(t, m.EBITDA, prev.EBITDA, "ebitda at %v", spend)
		assert.Less(t, m.MER, prev.MER, "mer at %v", spend)
		assert.Greater(t, m.BlendedCAC, prev.BlendedCAC, "cac at %v", spend)
		assert.Greater(t, m.CostPerOrder, prev.CostPerOrder, "cost per order at %v", spend)
		prev = m
	}
}

// ════════════════════════════════════════════════════════════════════
// Line / Kind
// ════════════════════════════════════════════════════════════════════

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Line{Label: "x", Value: 1.5, Kind: KindSubText})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"x","value":1.5,"kind":"sub_text"}`, string(data))

	var l Line
	require.NoError(t, json.Unmarshal([]byte(`{"label":"y","value":-2,"kind":"sub"}`), &l))
	assert.Equal(t, KindSub, l.Kind)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"mul"}`), &l))
	_, err = json.Marshal(Kind(9))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindBase, KindAdd, KindSub, KindSubText} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("")
	assert.Error(t, err)
	assert.Equal(t, "Kind(-1)", Kind(-1).String())
}

func TestSumSkipsDivisorLines(t *testing.T) {
	lines := []Line{base("a", 10), sub("b", -3), add("c", 2), divisor("d", 1000)}
	assert.Equal(t, 9.0, Sum(lines))
	assert.Equal(t, 0.0, Sum(nil))
}
