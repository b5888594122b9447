// Package rollup declares the maintained aggregate families and the write
// path hook that keeps them consistent with the fact ledger.
package rollup

import (
	"github.com/alfredjeanlab/tally/internal/model"
)

// Family couples a stored rollup declaration with the projection that maps a
// fact event onto the family's key and measure delta.
type Family struct {
	model.RollupFamily
	Project func(e *model.FactEvent) (model.RollupKey, model.Measures)
}

// Daily accumulates per-business-date revenue. Key: YYYY-MM-DD.
var Daily = Family{
	RollupFamily: model.RollupFamily{
		Name:      "daily",
		Table:     "rollup_daily",
		KeyColumn: "day",
		Measures: []model.MeasureSpec{
			{Field: model.FieldCount, Column: "order_count", Combine: model.CombineSum},
			{Field: model.FieldTotalCents, Column: "revenue_cents", Combine: model.CombineSum},
			{Field: model.FieldMaxCents, Column: "max_ticket_cents", Combine: model.CombineMax},
			{Field: model.FieldLastAt, Column: "last_order_at", Combine: model.CombineLast},
		},
	},
	Project: func(e *model.FactEvent) (model.RollupKey, model.Measures) {
		return model.RollupKey(e.Day()), model.Measures{
			Count:      1,
			TotalCents: e.AmountCents,
			MaxCents:   e.AmountCents,
			LastAt:     e.OccurredAt,
		}
	},
}

// Item accumulates lifetime sales per menu item. Key: item id.
var Item = Family{
	RollupFamily: model.RollupFamily{
		Name:      "item",
		Table:     "rollup_item",
		KeyColumn: "item_id",
		Measures: []model.MeasureSpec{
			{Field: model.FieldQuantity, Column: "quantity_sold", Combine: model.CombineSum},
			{Field: model.FieldTotalCents, Column: "revenue_cents", Combine: model.CombineSum},
			{Field: model.FieldCount, Column: "order_count", Combine: model.CombineSum},
			{Field: model.FieldLastAt, Column: "last_sold_at", Combine: model.CombineLast},
		},
	},
	Project: func(e *model.FactEvent) (model.RollupKey, model.Measures) {
		return model.RollupKey(e.ItemID), model.Measures{
			Quantity:   e.Quantity,
			TotalCents: e.AmountCents,
			Count:      1,
			LastAt:     e.OccurredAt,
		}
	},
}

// Customer accumulates per-customer activity. Key: customer id.
var Customer = Family{
	RollupFamily: model.RollupFamily{
		Name:      "customer",
		Table:     "rollup_customer",
		KeyColumn: "customer_id",
		Measures: []model.MeasureSpec{
			{Field: model.FieldCount, Column: "visit_count", Combine: model.CombineSum},
			{Field: model.FieldTotalCents, Column: "spend_cents", Combine: model.CombineSum},
			{Field: model.FieldMaxCents, Column: "max_ticket_cents", Combine: model.CombineMax},
			{Field: model.FieldLastAt, Column: "last_visit_at", Combine: model.CombineLast},
		},
	},
	Project: func(e *model.FactEvent) (model.RollupKey, model.Measures) {
		return model.RollupKey(e.CustomerID), model.Measures{
			Count:      1,
			TotalCents: e.AmountCents,
			MaxCents:   e.AmountCents,
			LastAt:     e.OccurredAt,
		}
	},
}

// Families returns every maintained family in registration order.
func Families() []Family {
	return []Family{Daily, Item, Customer}
}

// ByName resolves a family by its name.
func ByName(name string) (Family, bool) {
	for _, f := range Families() {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}
