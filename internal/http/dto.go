package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"financeiro/internal/aggregate"
	"financeiro/internal/core"
	"financeiro/internal/period"
	"financeiro/internal/services"
)

// Requests. JSON names follow the external API.

type periodRequest struct {
	Year   int  `json:"ano" validate:"required,min=1900,max=9999"`
	Month  int  `json:"mes" validate:"required,min=1,max=12"`
	Active bool `json:"ativa"`
}

type activateRequest struct {
	Year  int `json:"ano" validate:"required,min=1900,max=9999"`
	Month int `json:"mes" validate:"required,min=1,max=12"`
}

type categoryRequest struct {
	Name string `json:"nome" validate:"required,max=100"`
}

type paymentMethodRequest struct {
	Kind string `json:"tipo" validate:"required,max=100"`
}

type incomeRequest struct {
	PeriodID    core.ID         `json:"competencia_id" validate:"required"`
	Date        core.Date       `json:"data"`
	IncomeType  string          `json:"tipo_renda" validate:"max=100"`
	Description string          `json:"descricao" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"valor"`
}

func (r incomeRequest) record() core.IncomeEntry {
	return core.IncomeEntry{
		PeriodID: r.PeriodID, Date: r.Date, IncomeType: r.IncomeType,
		Description: r.Description, Amount: r.Amount,
	}
}

func (r incomeRequest) periodID() core.ID { return r.PeriodID }

type fixedRequest struct {
	PeriodID        core.ID         `json:"competencia_id" validate:"required"`
	CategoryID      core.ID         `json:"categoria_id" validate:"required"`
	PaymentMethodID core.ID         `json:"forma_pagamento_id" validate:"required"`
	Date            core.Date       `json:"data"`
	Description     string          `json:"descricao" validate:"required,max=200"`
	Paid            bool            `json:"pago"`
	Amount          decimal.Decimal `json:"valor"`
}

func (r fixedRequest) record() core.FixedExpense {
	return core.FixedExpense{
		PeriodID: r.PeriodID, CategoryID: r.CategoryID, PaymentMethodID: r.PaymentMethodID,
		Date: r.Date, Description: r.Description, Paid: r.Paid, Amount: r.Amount,
	}
}

func (r fixedRequest) periodID() core.ID { return r.PeriodID }

type variableRequest struct {
	PeriodID        core.ID         `json:"competencia_id" validate:"required"`
	CategoryID      core.ID         `json:"categoria_id" validate:"required"`
	PaymentMethodID core.ID         `json:"forma_pagamento_id" validate:"required"`
	Date            core.Date       `json:"data"`
	Description     string          `json:"descricao" validate:"required,max=200"`
	Amount          decimal.Decimal `json:"valor"`
}

func (r variableRequest) record() core.VariableExpense {
	return core.VariableExpense{
		PeriodID: r.PeriodID, CategoryID: r.CategoryID, PaymentMethodID: r.PaymentMethodID,
		Date: r.Date, Description: r.Description, Amount: r.Amount,
	}
}

func (r variableRequest) periodID() core.ID { return r.PeriodID }

type investmentRequest struct {
	PeriodID    core.ID         `json:"competencia_id" validate:"required"`
	Date        core.Date       `json:"data"`
	Description string          `json:"descricao" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"valor"`
}

func (r investmentRequest) record() core.Investment {
	return core.Investment{PeriodID: r.PeriodID, Date: r.Date, Description: r.Description, Amount: r.Amount}
}

func (r investmentRequest) periodID() core.ID { return r.PeriodID }

type goalRequest struct {
	Target flexString `json:"valor_meta"`
}

type bulkGoalRequest struct {
	Target    decimal.Decimal `json:"valor_meta"`
	OnlyEmpty bool            `json:"somente_vazias"`
}

// Responses. Money is written as a JSON number with two decimals.

func money(d decimal.Decimal) json.Number { return json.Number(d.StringFixed(2)) }

func series(values [12]decimal.Decimal) [12]json.Number {
	var out [12]json.Number
	for i, v := range values {
		out[i] = money(v)
	}
	return out
}

type totalsResponse struct {
	Income   json.Number `json:"entradas"`
	Fixed    json.Number `json:"gastos_fixos"`
	Variable json.Number `json:"gastos_variaveis"`
	Expenses json.Number `json:"despesas"`
	Invested json.Number `json:"investido"`
	Balance  json.Number `json:"saldo"`
}

func totalsOf(t aggregate.Totals) totalsResponse {
	return totalsResponse{
		Income:   money(t.Income),
		Fixed:    money(t.Fixed),
		Variable: money(t.Variable),
		Expenses: money(t.Expenses),
		Invested: money(t.Invested),
		Balance:  money(t.Balance),
	}
}

type labelAmount struct {
	Label string      `json:"rotulo"`
	Value json.Number `json:"valor"`
	Color string      `json:"cor,omitempty"`
}

func labelled(in []aggregate.LabelAmount, colors func(string) string) []labelAmount {
	out := make([]labelAmount, 0, len(in))
	for _, la := range in {
		out = append(out, labelAmount{Label: la.Label, Value: money(la.Amount), Color: colors(la.Label)})
	}
	return out
}

type seriesResponse struct {
	Labels   [12]string      `json:"meses"`
	Income   [12]json.Number `json:"entradas"`
	Expenses [12]json.Number `json:"despesas"`
	Invested [12]json.Number `json:"investido"`
	Balance  [12]json.Number `json:"saldo"`
}

func monthLabels() [12]string {
	var out [12]string
	for m := range out {
		out[m] = period.MonthLabel(m)
	}
	return out
}

type yearDashboardResponse struct {
	Year            int            `json:"ano"`
	Years           []int          `json:"anos"`
	Periods         []core.Period  `json:"competencias"`
	Totals          totalsResponse `json:"totais"`
	Series          seriesResponse `json:"serie_mensal"`
	ByCategory      []labelAmount  `json:"por_categoria"`
	ByPaymentMethod []labelAmount  `json:"por_forma_pagamento"`
	Vale            json.Number    `json:"vale"`
	NetIncome       json.Number    `json:"renda_liquida_sem_vale"`
	Warnings        []string       `json:"avisos,omitempty"`
}

func yearDashboardOf(d services.YearDashboard) yearDashboardResponse {
	return yearDashboardResponse{
		Year:    d.Year,
		Years:   d.Years,
		Periods: d.Periods,
		Totals:  totalsOf(d.Totals),
		Series: seriesResponse{
			Labels:   monthLabels(),
			Income:   series(d.Series.Income),
			Expenses: series(d.Series.Expenses),
			Invested: series(d.Series.Invested),
			Balance:  series(d.Series.Balance),
		},
		ByCategory:      labelled(d.ByCategory, func(l string) string { return d.CategoryColors[l] }),
		ByPaymentMethod: labelled(d.ByPaymentMethod, func(l string) string { return d.PaymentColors[l] }),
		Vale:            money(d.Vale),
		NetIncome:       money(d.NetIncome),
		Warnings:        d.Warnings,
	}
}

type goalResponse struct {
	ID       core.ID     `json:"id"`
	PeriodID core.ID     `json:"competencia_id"`
	Target   json.Number `json:"valor_meta"`
}

func goalOf(g *core.InvestmentGoal) *goalResponse {
	if g == nil {
		return nil
	}
	return &goalResponse{ID: g.ID, PeriodID: g.PeriodID, Target: money(g.Target)}
}

type periodDashboardResponse struct {
	Period          core.Period    `json:"competencia"`
	Totals          totalsResponse `json:"totais"`
	ByCategory      []labelAmount  `json:"por_categoria"`
	ByPaymentMethod []labelAmount  `json:"por_forma_pagamento"`
	Available       json.Number    `json:"disponivel_para_investir"`
	Goal            *goalResponse  `json:"meta"`
	Warnings        []string       `json:"avisos,omitempty"`
}

func periodDashboardOf(d services.PeriodDashboard, catColor, methodColor func(string) string) periodDashboardResponse {
	return periodDashboardResponse{
		Period:          d.Period,
		Totals:          totalsOf(d.Totals),
		ByCategory:      labelled(d.ByCategory, catColor),
		ByPaymentMethod: labelled(d.ByPaymentMethod, methodColor),
		Available:       money(d.Available),
		Goal:            goalOf(d.Goal),
		Warnings:        d.Warnings,
	}
}

type goalComparisonResponse struct {
	Year     int             `json:"ano"`
	Labels   [12]string      `json:"meses"`
	Goal     [12]json.Number `json:"meta"`
	Invested [12]json.Number `json:"investido"`
	Warnings []string        `json:"avisos,omitempty"`
}

func goalComparisonOf(d services.GoalDashboard) goalComparisonResponse {
	return goalComparisonResponse{
		Year:     d.Year,
		Labels:   d.Labels,
		Goal:     series(d.Goal),
		Invested: series(d.Invested),
		Warnings: d.Warnings,
	}
}

type countResponse struct {
	Year    int `json:"ano"`
	Written int `json:"alteradas"`
}
