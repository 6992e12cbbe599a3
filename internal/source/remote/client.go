// Package remote talks to the external finance REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financeiro/internal/core"
	"financeiro/internal/source"
)

const maxBodyBytes = 4 << 20

// Client implements source.Backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ source.Backend = (*Client)(nil)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets a 404 match source.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == source.ErrNotFound && e.Status == http.StatusNotFound
}

// New creates a client. token, when set, is sent as a bearer token.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// request bodies

type (
	periodBody struct {
		UserID core.ID `json:"user_id"`
		Year   int     `json:"ano"`
		Month  int     `json:"mes"`
		Active bool    `json:"ativa"`
	}

	namedBody struct {
		UserID core.ID `json:"user_id"`
		Name   string  `json:"nome,omitempty"`
		Kind   string  `json:"tipo,omitempty"`
	}

	incomeBody struct {
		UserID      core.ID     `json:"user_id"`
		PeriodID    core.ID     `json:"competencia_id"`
		Date        string      `json:"data"`
		IncomeType  string      `json:"tipo_renda"`
		Description string      `json:"descricao"`
		Amount      json.Number `json:"valor"`
	}

	expenseBody struct {
		UserID          core.ID     `json:"user_id"`
		PeriodID        core.ID     `json:"competencia_id"`
		CategoryID      core.ID     `json:"categoria_id"`
		PaymentMethodID core.ID     `json:"forma_pagamento_id"`
		Date            string      `json:"data"`
		Description     string      `json:"descricao"`
		Amount          json.Number `json:"valor"`
		Paid            *bool       `json:"pago,omitempty"`
	}

	investmentBody struct {
		UserID      core.ID     `json:"user_id,omitempty"`
		PeriodID    core.ID     `json:"competencia_id,omitempty"`
		Date        string      `json:"data"`
		Description string      `json:"descricao"`
		Amount      json.Number `json:"valor"`
	}

	goalBody struct {
		UserID   core.ID     `json:"user_id,omitempty"`
		PeriodID core.ID     `json:"competencia_id,omitempty"`
		Target   json.Number `json:"valor_meta"`
	}
)

func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil)
}

func (c *Client) ListPeriods(ctx context.Context, userID core.ID) ([]core.Period, error) {
	return list[core.Period](ctx, c, source.KindPeriod, userID)
}

func (c *Client) ListCategories(ctx context.Context, userID core.ID) ([]core.Category, error) {
	return list[core.Category](ctx, c, source.KindCategory, userID)
}

func (c *Client) ListPaymentMethods(ctx context.Context, userID core.ID) ([]core.PaymentMethod, error) {
	return list[core.PaymentMethod](ctx, c, source.KindPayment, userID)
}

func (c *Client) ListIncome(ctx context.Context, periodID core.ID) ([]core.IncomeEntry, error) {
	return list[core.IncomeEntry](ctx, c, source.KindIncome, periodID)
}

func (c *Client) ListFixed(ctx context.Context, periodID core.ID) ([]core.FixedExpense, error) {
	return list[core.FixedExpense](ctx, c, source.KindFixed, periodID)
}

func (c *Client) ListVariable(ctx context.Context, periodID core.ID) ([]core.VariableExpense, error) {
	return list[core.VariableExpense](ctx, c, source.KindVariable, periodID)
}

func (c *Client) ListInvestments(ctx context.Context, periodID core.ID) ([]core.Investment, error) {
	return list[core.Investment](ctx, c, source.KindInvestment, periodID)
}

func (c *Client) ListGoals(ctx context.Context, periodID core.ID) ([]core.InvestmentGoal, error) {
	return list[core.InvestmentGoal](ctx, c, source.KindGoal, periodID)
}

// Summary fetches /resumo/{user}/{period}. A body that is not a summary
// object decodes to the zero summary.
func (c *Client) Summary(ctx context.Context, userID, periodID core.ID) (core.PeriodSummary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/resumo/"+esc(userID)+"/"+esc(periodID), nil, &raw); err != nil {
		return core.PeriodSummary{}, err
	}
	s, _ := core.DecodeSummary(raw)
	return s, nil
}

func (c *Client) CreatePeriod(ctx context.Context, userID core.ID, p core.Period) (core.Period, error) {
	body := periodBody{UserID: userID, Year: p.Year, Month: p.Month, Active: p.Active}
	out, err := create[core.Period](ctx, c, source.KindPeriod, body)
	if err == nil && out.ID.IsZero() {
		err = errors.New("create period: response carries no id")
	}
	return out, err
}

func (c *Client) ActivatePeriod(ctx context.Context, userID core.ID, year, month int) error {
	body := periodBody{UserID: userID, Year: year, Month: month, Active: true}
	return c.do(ctx, http.MethodPatch, "/"+string(source.KindPeriod)+"/ativar", body, nil)
}

func (c *Client) CreateCategory(ctx context.Context, userID core.ID, name string) (core.Category, error) {
	return create[core.Category](ctx, c, source.KindCategory, namedBody{UserID: userID, Name: name})
}

func (c *Client) CreatePaymentMethod(ctx context.Context, userID core.ID, kind string) (core.PaymentMethod, error) {
	return create[core.PaymentMethod](ctx, c, source.KindPayment, namedBody{UserID: userID, Kind: kind})
}

func (c *Client) CreateIncome(ctx context.Context, userID core.ID, e core.IncomeEntry) (core.IncomeEntry, error) {
	return create[core.IncomeEntry](ctx, c, source.KindIncome, incomeBody{
		UserID:      userID,
		PeriodID:    e.PeriodID,
		Date:        e.Date.String(),
		IncomeType:  e.IncomeType,
		Description: e.Description,
		Amount:      number(e.Amount),
	})
}

func (c *Client) CreateFixed(ctx context.Context, userID core.ID, e core.FixedExpense) (core.FixedExpense, error) {
	paid := e.Paid
	return create[core.FixedExpense](ctx, c, source.KindFixed, expenseBody{
		UserID:          userID,
		PeriodID:        e.PeriodID,
		CategoryID:      e.CategoryID,
		PaymentMethodID: e.PaymentMethodID,
		Date:            e.Date.String(),
		Description:     e.Description,
		Amount:          number(e.Amount),
		Paid:            &paid,
	})
}

func (c *Client) CreateVariable(ctx context.Context, userID core.ID, e core.VariableExpense) (core.VariableExpense, error) {
	return create[core.VariableExpense](ctx, c, source.KindVariable, expenseBody{
		UserID:          userID,
		PeriodID:        e.PeriodID,
		CategoryID:      e.CategoryID,
		PaymentMethodID: e.PaymentMethodID,
		Date:            e.Date.String(),
		Description:     e.Description,
		Amount:          number(e.Amount),
	})
}

func (c *Client) CreateInvestment(ctx context.Context, userID core.ID, i core.Investment) (core.Investment, error) {
	return create[core.Investment](ctx, c, source.KindInvestment, investmentBody{
		UserID:      userID,
		PeriodID:    i.PeriodID,
		Date:        i.Date.String(),
		Description: i.Description,
		Amount:      number(i.Amount),
	})
}

func (c *Client) CreateGoal(ctx context.Context, userID core.ID, g core.InvestmentGoal) (core.InvestmentGoal, error) {
	return create[core.InvestmentGoal](ctx, c, source.KindGoal, goalBody{
		UserID:   userID,
		PeriodID: g.PeriodID,
		Target:   number(g.Target),
	})
}

// UpdateField sends one {campo, valor} PATCH.
func (c *Client) UpdateField(ctx context.Context, kind source.Kind, id core.ID, change core.FieldChange) error {
	switch kind {
	case source.KindIncome, source.KindFixed, source.KindVariable:
	default:
		return fmt.Errorf("field update of %s: %w", kind, source.ErrUnsupported)
	}
	if d, ok := change.Value.(decimal.Decimal); ok {
		change.Value = number(d)
	}
	return c.do(ctx, http.MethodPatch, path(kind, id), change, nil)
}

func (c *Client) UpdateInvestment(ctx context.Context, i core.Investment) error {
	return c.do(ctx, http.MethodPatch, path(source.KindInvestment, i.ID), investmentBody{
		Date:        i.Date.String(),
		Description: i.Description,
		Amount:      number(i.Amount),
	}, nil)
}

func (c *Client) UpdateGoal(ctx context.Context, id core.ID, target decimal.Decimal) error {
	return c.do(ctx, http.MethodPatch, path(source.KindGoal, id), goalBody{Target: number(target)}, nil)
}

func (c *Client) Delete(ctx context.Context, kind source.Kind, id core.ID) error {
	return c.do(ctx, http.MethodDelete, path(kind, id), nil, nil)
}

func list[T any](ctx context.Context, c *Client, kind source.Kind, owner core.ID) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path(kind, owner), nil, &raw); err != nil {
		return nil, err
	}
	out := []T{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return out, nil
}

// create posts body and decodes the created record. The API answers with
// either the object or a one-element array.
func create[T any](ctx context.Context, c *Client, kind source.Kind, body any) (T, error) {
	var zero T
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/"+string(kind), body, &raw); err != nil {
		return zero, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return zero, fmt.Errorf("decode created %s: %w", kind, err)
		}
		if len(items) == 0 {
			return zero, nil
		}
		return items[0], nil
	}
	if len(raw) == 0 || raw[0] != '{' {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode created %s: %w", kind, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.baseURL + p
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, URL: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
	}
	return nil
}

func path(kind source.Kind, id core.ID) string {
	return "/" + string(kind) + "/" + esc(id)
}

func esc(id core.ID) string { return url.PathEscape(string(id)) }
