package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// ID identifies a record owned by the backend. The external API sends
	// numeric ids for some deployments and strings for others.
	ID string

	Date struct {
		time.Time
	}

	// Period is a "competência": the accounting month scoping every record.
	Period struct {
		ID     ID   `json:"id"`
		UserID ID   `json:"user_id,omitempty"`
		Year   int  `json:"ano"`
		Month  int  `json:"mes"`
		Active bool `json:"ativa"`
	}

	Category struct {
		ID   ID     `json:"id"`
		Name string `json:"nome"`
	}

	PaymentMethod struct {
		ID   ID     `json:"id"`
		Kind string `json:"tipo"`
	}

	IncomeEntry struct {
		ID          ID              `json:"id,omitempty"`
		PeriodID    ID              `json:"competencia_id"`
		Date        Date            `json:"data"`
		IncomeType  string          `json:"tipo_renda"`
		Description string          `json:"descricao"`
		Amount      decimal.Decimal `json:"valor"`
	}

	FixedExpense struct {
		ID              ID              `json:"id,omitempty"`
		PeriodID        ID              `json:"competencia_id"`
		CategoryID      ID              `json:"categoria_id"`
		PaymentMethodID ID              `json:"forma_pagamento_id"`
		Date            Date            `json:"data"`
		Description     string          `json:"descricao"`
		Paid            bool            `json:"pago"`
		Amount          decimal.Decimal `json:"valor"`
	}

	VariableExpense struct {
		ID              ID              `json:"id,omitempty"`
		PeriodID        ID              `json:"competencia_id"`
		CategoryID      ID              `json:"categoria_id"`
		PaymentMethodID ID              `json:"forma_pagamento_id"`
		Date            Date            `json:"data"`
		Description     string          `json:"descricao"`
		Amount          decimal.Decimal `json:"valor"`
	}

	Investment struct {
		ID          ID              `json:"id,omitempty"`
		PeriodID    ID              `json:"competencia_id"`
		Date        Date            `json:"data"`
		Description string          `json:"descricao"`
		Amount      decimal.Decimal `json:"valor"`
	}

	// InvestmentGoal is the target investment for one period. A period has
	// at most one goal; a non-positive target means "no goal".
	InvestmentGoal struct {
		ID       ID              `json:"id,omitempty"`
		PeriodID ID              `json:"competencia_id"`
		Target   decimal.Decimal `json:"valor_meta"`
	}

	// RecordSet holds every record of a single period.
	RecordSet struct {
		PeriodID ID                `json:"competencia_id"`
		Income   []IncomeEntry     `json:"entradas"`
		Fixed    []FixedExpense    `json:"gastos_fixos"`
		Variable []VariableExpense `json:"gastos_variaveis"`
		Invested []Investment      `json:"investimentos"`
		Goal     *InvestmentGoal   `json:"meta,omitempty"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrMissingPeriod      = errors.New("missing period id")
	ErrMissingCategory    = errors.New("missing category id")
	ErrMissingPayment     = errors.New("missing payment method id")
	ErrEmptyName          = errors.New("empty name")
	ErrUnknownField       = errors.New("unknown field")
)

const maxDescriptionLen = 200

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits canonical integers as numbers and anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if s == "" {
		return []byte(`""`), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD"; a longer timestamp is truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1900 || p.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (m PaymentMethod) Validate() error {
	if strings.TrimSpace(m.Kind) == "" {
		return ErrEmptyName
	}
	return nil
}

func validateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidatePositive rejects zero and negative amounts.
func ValidatePositive(a decimal.Decimal) error {
	if !a.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (e IncomeEntry) Validate() error {
	if e.PeriodID.IsZero() {
		return ErrMissingPeriod
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return ValidatePositive(e.Amount)
}

func (e FixedExpense) Validate() error {
	if e.PeriodID.IsZero() {
		return ErrMissingPeriod
	}
	if e.CategoryID.IsZero() {
		return ErrMissingCategory
	}
	if e.PaymentMethodID.IsZero() {
		return ErrMissingPayment
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return ValidatePositive(e.Amount)
}

func (e VariableExpense) Validate() error {
	if e.PeriodID.IsZero() {
		return ErrMissingPeriod
	}
	if e.CategoryID.IsZero() {
		return ErrMissingCategory
	}
	if e.PaymentMethodID.IsZero() {
		return ErrMissingPayment
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return ValidatePositive(e.Amount)
}

func (i Investment) Validate() error {
	if i.PeriodID.IsZero() {
		return ErrMissingPeriod
	}
	if err := i.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(i.Description); err != nil {
		return err
	}
	return ValidatePositive(i.Amount)
}

// HasTarget reports whether the goal carries a meaningful (positive) target.
func (g InvestmentGoal) HasTarget() bool {
	return g.Target.IsPositive()
}
