package core

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Breakdown maps a category or payment-method id to an amount.
//
// The backend has shipped both an object ({"12": 40.5}) and an array
// ([{"categoria_id": 12, "total": 40.5}]); both decode here. Anything else
// decodes as an empty breakdown.
type Breakdown map[ID]Amount

type breakdownItem struct {
	ID              ID      `json:"id"`
	CategoryID      ID      `json:"categoria_id"`
	PaymentMethodID ID      `json:"forma_pagamento_id"`
	Total           Amount  `json:"total"`
	Value           *Amount `json:"valor"`
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	out := Breakdown{}
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
	case data[0] == '{':
		var m map[string]Amount
		if err := json.Unmarshal(data, &m); err == nil {
			for k, v := range m {
				out[ID(k)] = v
			}
		}
	case data[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err == nil {
			for _, r := range raw {
				var it breakdownItem
				if err := json.Unmarshal(r, &it); err != nil {
					continue
				}
				id := it.CategoryID
				if id.IsZero() {
					id = it.PaymentMethodID
				}
				if id.IsZero() {
					id = it.ID
				}
				amt := it.Total
				if it.Value != nil {
					amt = *it.Value
				}
				prev := out[id]
				out[id] = NewAmount(prev.Add(amt.Decimal))
			}
		}
	}
	*b = out
	return nil
}

// Add accumulates an amount under id.
func (b Breakdown) Add(id ID, amount decimal.Decimal) {
	prev := b[id]
	b[id] = NewAmount(prev.Add(amount))
}

// Total sums every entry.
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v.Decimal)
	}
	return total
}

// Keys returns the ids in a stable order.
func (b Breakdown) Keys() []ID {
	keys := make([]ID, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns an independent copy.
func (b Breakdown) Clone() Breakdown {
	if b == nil {
		return nil
	}
	out := make(Breakdown, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

type (
	TotalOnly struct {
		Total Amount `json:"total"`
	}

	ExpenseGroup struct {
		Total           Amount    `json:"total"`
		ByCategory      Breakdown `json:"por_categoria,omitempty"`
		ByPaymentMethod Breakdown `json:"por_forma_pagamento,omitempty"`
	}

	Expenses struct {
		Fixed    ExpenseGroup `json:"fixas"`
		Variable ExpenseGroup `json:"variaveis"`
	}

	// PeriodSummary is the per-period "resumo" served by the backend.
	// PaymentTotals, when present, is the backend's combined fixed+variable
	// payment-method breakdown.
	PeriodSummary struct {
		Income        TotalOnly `json:"entradas"`
		Expenses      Expenses  `json:"despesas"`
		Investments   TotalOnly `json:"investimentos"`
		PaymentTotals Breakdown `json:"formas_pagamento_total,omitempty"`
	}
)

// DecodeSummary decodes a summary body. Malformed input yields a zero
// summary and ok=false; it never returns an error.
func DecodeSummary(data []byte) (PeriodSummary, bool) {
	var s PeriodSummary
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return PeriodSummary{}, false
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return PeriodSummary{}, false
	}
	return s, true
}

// Clone returns a deep copy so cached summaries can be snapshotted.
func (s PeriodSummary) Clone() PeriodSummary {
	out := s
	out.Expenses.Fixed.ByCategory = s.Expenses.Fixed.ByCategory.Clone()
	out.Expenses.Fixed.ByPaymentMethod = s.Expenses.Fixed.ByPaymentMethod.Clone()
	out.Expenses.Variable.ByCategory = s.Expenses.Variable.ByCategory.Clone()
	out.Expenses.Variable.ByPaymentMethod = s.Expenses.Variable.ByPaymentMethod.Clone()
	out.PaymentTotals = s.PaymentTotals.Clone()
	return out
}

// TotalExpenses is fixed plus variable.
func (s PeriodSummary) TotalExpenses() decimal.Decimal {
	return s.Expenses.Fixed.Total.Add(s.Expenses.Variable.Total.Decimal)
}

// Balance is income minus expenses minus investments.
func (s PeriodSummary) Balance() decimal.Decimal {
	return s.Income.Total.Sub(s.TotalExpenses()).Sub(s.Investments.Total.Decimal)
}
