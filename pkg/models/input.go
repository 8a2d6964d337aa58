// Package models defines the data records exchanged between the signalroi
// engine, its store and its HTTP/CLI surfaces.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultGSTRatePercent is applied when gst_rate_percent is absent or zero.
const DefaultGSTRatePercent = 18.0

// ProspectingShare is the share of total ad spend assumed to be prospecting
// when ad_spend_prospecting is not provided.
const ProspectingShare = 0.8

// ErrNotAnObject is returned by ParseInput when the payload is not a JSON object.
var ErrNotAnObject = errors.New("models: input is not a JSON object")

// Input is one reporting period's raw figures. A nil field means the value was
// not provided; Resolve applies the documented defaults.
type Input struct {
	// Revenue
	GrossSalesInclGST *float64 `json:"gross_sales_incl_gst,omitempty"  yaml:"gross_sales_incl_gst,omitempty"`
	GSTRatePercent    *float64 `json:"gst_rate_percent,omitempty"      yaml:"gst_rate_percent,omitempty"`
	DiscountsTotal    *float64 `json:"discounts_total,omitempty"       yaml:"discounts_total,omitempty"`
	ReturnsValueExGST *float64 `json:"returns_value_ex_gst,omitempty"  yaml:"returns_value_ex_gst,omitempty"`
	FeesCommissions   *float64 `json:"fees_commissions,omitempty"      yaml:"fees_commissions,omitempty"`

	// Volume
	TotalOrders       *float64 `json:"total_orders,omitempty"          yaml:"total_orders,omitempty"`
	OrdersNewCustomer *float64 `json:"orders_new_customer,omitempty"   yaml:"orders_new_customer,omitempty"`
	UnitsSold         *float64 `json:"units_sold,omitempty"            yaml:"units_sold,omitempty"`

	// Cost of goods
	CostMfgPerUnit            *float64 `json:"cost_mfg_per_unit,omitempty"           yaml:"cost_mfg_per_unit,omitempty"`
	PackagingConsumablesTotal *float64 `json:"packaging_consumables_total,omitempty" yaml:"packaging_consumables_total,omitempty"`
	InventoryPurchasedValue   *float64 `json:"inventory_purchased_value,omitempty"   yaml:"inventory_purchased_value,omitempty"`

	// Logistics
	ShippingExpenseForward *float64 `json:"shipping_expense_forward,omitempty"  yaml:"shipping_expense_forward,omitempty"`
	RTOPenaltyTotal        *float64 `json:"rto_penalty_total,omitempty"         yaml:"rto_penalty_total,omitempty"`
	WarehousePickPackTotal *float64 `json:"warehouse_pick_pack_total,omitempty" yaml:"warehouse_pick_pack_total,omitempty"`
	PaymentGatewayFees     *float64 `json:"payment_gateway_fees,omitempty"      yaml:"payment_gateway_fees,omitempty"`

	// Marketing
	AdSpendTotal       *float64 `json:"ad_spend_total,omitempty"       yaml:"ad_spend_total,omitempty"`
	AdSpendProspecting *float64 `json:"ad_spend_prospecting,omitempty" yaml:"ad_spend_prospecting,omitempty"`

	// Overhead / targets
	TotalFixedOpex       *float64 `json:"total_fixed_opex,omitempty"        yaml:"total_fixed_opex,omitempty"`
	TargetProfitPerOrder *float64 `json:"target_profit_per_order,omitempty" yaml:"target_profit_per_order,omitempty"`

	// Cash
	CashOnHand *float64 `json:"cash_on_hand,omitempty" yaml:"cash_on_hand,omitempty"`
}

// Resolved is an Input with every default applied. Order counts keep their
// raw value; division guards belong to the caller doing the division.
type Resolved struct {
	GrossSalesInclGST         float64
	GSTRatePercent            float64
	DiscountsTotal            float64
	ReturnsValueExGST         float64
	FeesCommissions           float64
	TotalOrders               float64
	OrdersNewCustomer         float64
	UnitsSold                 float64
	CostMfgPerUnit            float64
	PackagingConsumablesTotal float64
	InventoryPurchasedValue   float64
	ShippingExpenseForward    float64
	RTOPenaltyTotal           float64
	WarehousePickPackTotal    float64
	PaymentGatewayFees        float64
	AdSpendTotal              float64
	AdSpendProspecting        float64
	TotalFixedOpex            float64
	TargetProfitPerOrder      float64
	CashOnHand                float64
}

// Float returns a pointer to v, for building Input literals.
func Float(v float64) *float64 { return &v }

// Resolve applies the documented defaults to every field.
func (in Input) Resolve() Resolved {
	r := Resolved{
		GrossSalesInclGST:         valueOr(in.GrossSalesInclGST, 0),
		GSTRatePercent:            valueOr(in.GSTRatePercent, DefaultGSTRatePercent),
		DiscountsTotal:            valueOr(in.DiscountsTotal, 0),
		ReturnsValueExGST:         valueOr(in.ReturnsValueExGST, 0),
		FeesCommissions:           valueOr(in.FeesCommissions, 0),
		TotalOrders:               valueOr(in.TotalOrders, 0),
		OrdersNewCustomer:         valueOr(in.OrdersNewCustomer, 0),
		UnitsSold:                 valueOr(in.UnitsSold, 0),
		CostMfgPerUnit:            valueOr(in.CostMfgPerUnit, 0),
		PackagingConsumablesTotal: valueOr(in.PackagingConsumablesTotal, 0),
		InventoryPurchasedValue:   valueOr(in.InventoryPurchasedValue, 0),
		ShippingExpenseForward:    valueOr(in.ShippingExpenseForward, 0),
		RTOPenaltyTotal:           valueOr(in.RTOPenaltyTotal, 0),
		WarehousePickPackTotal:    valueOr(in.WarehousePickPackTotal, 0),
		PaymentGatewayFees:        valueOr(in.PaymentGatewayFees, 0),
		AdSpendTotal:              valueOr(in.AdSpendTotal, 0),
		TotalFixedOpex:            valueOr(in.TotalFixedOpex, 0),
		TargetProfitPerOrder:      valueOr(in.TargetProfitPerOrder, 0),
		CashOnHand:                valueOr(in.CashOnHand, 0),
	}

	// A zero GST rate is treated like a missing one.
	if r.GSTRatePercent == 0 {
		r.GSTRatePercent = DefaultGSTRatePercent
	}
	r.AdSpendProspecting = valueOr(in.AdSpendProspecting, r.AdSpendTotal*ProspectingShare)
	return r
}

// DefaultInput returns the reference Indian D2C scenario used when nothing has
// been saved yet or the saved record is unreadable.
func DefaultInput() Input {
	return Input{
		GrossSalesInclGST:         Float(5000000),
		GSTRatePercent:            Float(18),
		DiscountsTotal:            Float(200000),
		ReturnsValueExGST:         Float(150000),
		TotalOrders:               Float(2500),
		OrdersNewCustomer:         Float(1800),
		UnitsSold:                 Float(3000),
		CostMfgPerUnit:            Float(400),
		PackagingConsumablesTotal: Float(50000),
		InventoryPurchasedValue:   Float(1500000),
		ShippingExpenseForward:    Float(250000),
		RTOPenaltyTotal:           Float(120000),
		WarehousePickPackTotal:    Float(75000),
		PaymentGatewayFees:        Float(100000),
		AdSpendTotal:              Float(1200000),
		AdSpendProspecting:        Float(800000),
		TotalFixedOpex:            Float(800000),
		TargetProfitPerOrder:      Float(200),
		CashOnHand:                Float(2500000),
	}
}

// ParseInput decodes a loosely typed key/value record. Unknown keys are
// ignored and values that are not finite numbers are treated as absent. It
// only fails when data is not a JSON object.
func ParseInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// UnmarshalJSON implements lenient decoding: numbers and numeric strings are
// accepted, anything else leaves the field nil.
func (in *Input) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return ErrNotAnObject
	}

	*in = Input{}
	for _, f := range in.fields() {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		*f.ptr = coerce(v)
	}
	return nil
}

// Set assigns a field by its snake_case key. It reports an error for an
// unknown key so CLI callers can catch typos.
func (in *Input) Set(key string, value float64) error {
	for _, f := range in.fields() {
		if f.key == key {
			*f.ptr = Float(value)
			return nil
		}
	}
	return fmt.Errorf("models: unknown input field %q", key)
}

// Keys lists every recognised field key in display order.
func Keys() []string {
	var in Input
	fs := in.fields()
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.key
	}
	return keys
}

type field struct {
	key string
	ptr **float64
}

func (in *Input) fields() []field {
	return []field{
		{"gross_sales_incl_gst", &in.GrossSalesInclGST},
		{"gst_rate_percent", &in.GSTRatePercent},
		{"discounts_total", &in.DiscountsTotal},
		{"returns_value_ex_gst", &in.ReturnsValueExGST},
		{"fees_commissions", &in.FeesCommissions},
		{"total_orders", &in.TotalOrders},
		{"orders_new_customer", &in.OrdersNewCustomer},
		{"units_sold", &in.UnitsSold},
		{"cost_mfg_per_unit", &in.CostMfgPerUnit},
		{"packaging_consumables_total", &in.PackagingConsumablesTotal},
		{"inventory_purchased_value", &in.InventoryPurchasedValue},
		{"shipping_expense_forward", &in.ShippingExpenseForward},
		{"rto_penalty_total", &in.RTOPenaltyTotal},
		{"warehouse_pick_pack_total", &in.WarehousePickPackTotal},
		{"payment_gateway_fees", &in.PaymentGatewayFees},
		{"ad_spend_total", &in.AdSpendTotal},
		{"ad_spend_prospecting", &in.AdSpendProspecting},
		{"total_fixed_opex", &in.TotalFixedOpex},
		{"target_profit_per_order", &in.TargetProfitPerOrder},
		{"cash_on_hand", &in.CashOnHand},
	}
}

// numericPrefix matches the leading number of a string the way a browser's
// parseFloat does ("12.5kg" -> 12.5).
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

func coerce(raw json.RawMessage) *float64 {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		m := numericPrefix.FindString(strings.TrimSpace(t))
		if m == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
