package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names accepted by the backend's field-level PATCH.
const (
	FieldDate          = "data"
	FieldIncomeType    = "tipo_renda"
	FieldDescription   = "descricao"
	FieldAmount        = "valor"
	FieldPaid          = "pago"
	FieldCategory      = "categoria_id"
	FieldPaymentMethod = "forma_pagamento_id"
)

// FieldChange is one (field, new value) pair of a field-level update.
type FieldChange struct {
	Field string `json:"campo"`
	Value any    `json:"valor"`
}

func (e IncomeEntry) Diff(draft IncomeEntry) []FieldChange {
	var out []FieldChange
	if !draft.Date.Equal(e.Date.Time) {
		out = append(out, FieldChange{FieldDate, draft.Date.String()})
	}
	if draft.IncomeType != e.IncomeType {
		out = append(out, FieldChange{FieldIncomeType, draft.IncomeType})
	}
	if draft.Description != e.Description {
		out = append(out, FieldChange{FieldDescription, draft.Description})
	}
	if !draft.Amount.Equal(e.Amount) {
		out = append(out, FieldChange{FieldAmount, draft.Amount})
	}
	return out
}

func (e FixedExpense) Diff(draft FixedExpense) []FieldChange {
	var out []FieldChange
	if !draft.Date.Equal(e.Date.Time) {
		out = append(out, FieldChange{FieldDate, draft.Date.String()})
	}
	if draft.Description != e.Description {
		out = append(out, FieldChange{FieldDescription, draft.Description})
	}
	if !draft.Amount.Equal(e.Amount) {
		out = append(out, FieldChange{FieldAmount, draft.Amount})
	}
	if draft.Paid != e.Paid {
		out = append(out, FieldChange{FieldPaid, draft.Paid})
	}
	if draft.CategoryID != e.CategoryID {
		out = append(out, FieldChange{FieldCategory, draft.CategoryID})
	}
	if draft.PaymentMethodID != e.PaymentMethodID {
		out = append(out, FieldChange{FieldPaymentMethod, draft.PaymentMethodID})
	}
	return out
}

func (e VariableExpense) Diff(draft VariableExpense) []FieldChange {
	var out []FieldChange
	if !draft.Date.Equal(e.Date.Time) {
		out = append(out, FieldChange{FieldDate, draft.Date.String()})
	}
	if draft.Description != e.Description {
		out = append(out, FieldChange{FieldDescription, draft.Description})
	}
	if !draft.Amount.Equal(e.Amount) {
		out = append(out, FieldChange{FieldAmount, draft.Amount})
	}
	if draft.CategoryID != e.CategoryID {
		out = append(out, FieldChange{FieldCategory, draft.CategoryID})
	}
	if draft.PaymentMethodID != e.PaymentMethodID {
		out = append(out, FieldChange{FieldPaymentMethod, draft.PaymentMethodID})
	}
	return out
}

// Apply sets one field. Values may arrive typed (from Diff) or as decoded
// JSON (strings, float64, bool).
func (e *IncomeEntry) Apply(c FieldChange) error {
	switch c.Field {
	case FieldDate:
		d, err := dateValue(c.Value)
		if err != nil {
			return err
		}
		e.Date = d
	case FieldIncomeType:
		e.IncomeType = stringValue(c.Value)
	case FieldDescription:
		e.Description = stringValue(c.Value)
	case FieldAmount:
		e.Amount = ToAmount(c.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}
	return nil
}

func (e *FixedExpense) Apply(c FieldChange) error {
	switch c.Field {
	case FieldDate:
		d, err := dateValue(c.Value)
		if err != nil {
			return err
		}
		e.Date = d
	case FieldDescription:
		e.Description = stringValue(c.Value)
	case FieldAmount:
		e.Amount = ToAmount(c.Value)
	case FieldPaid:
		b, _ := c.Value.(bool)
		e.Paid = b
	case FieldCategory:
		e.CategoryID = ID(stringValue(c.Value))
	case FieldPaymentMethod:
		e.PaymentMethodID = ID(stringValue(c.Value))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}
	return nil
}

func (e *VariableExpense) Apply(c FieldChange) error {
	switch c.Field {
	case FieldDate:
		d, err := dateValue(c.Value)
		if err != nil {
			return err
		}
		e.Date = d
	case FieldDescription:
		e.Description = stringValue(c.Value)
	case FieldAmount:
		e.Amount = ToAmount(c.Value)
	case FieldCategory:
		e.CategoryID = ID(stringValue(c.Value))
	case FieldPaymentMethod:
		e.PaymentMethodID = ID(stringValue(c.Value))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}
	return nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case ID:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return fmt.Sprint(x)
	}
}

func dateValue(v any) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	default:
		return ParseDate(stringValue(v))
	}
}
