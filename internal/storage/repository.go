// Package storage is a SQLite stand-in for the external finance backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"financeiro/internal/aggregate"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/source"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ source.Backend = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context, userID core.ID) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, active FROM periods WHERE user_id = ? ORDER BY year DESC, month DESC`,
		string(userID))
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()
	out := []core.Period{}
	for rows.Next() {
		var (
			p      core.Period
			id     int64
			uid    string
			active bool
		)
		if err := rows.Scan(&id, &uid, &p.Year, &p.Month, &active); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		p.ID, p.UserID, p.Active = idOf(id), core.ID(uid), active
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID core.ID) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories WHERE user_id = ? ORDER BY name`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []core.Category{}
	for rows.Next() {
		var id int64
		var c core.Category
		if err := rows.Scan(&id, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ID = idOf(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context, userID core.ID) ([]core.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind FROM payment_methods WHERE user_id = ? ORDER BY kind`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()
	out := []core.PaymentMethod{}
	for rows.Next() {
		var id int64
		var m core.PaymentMethod
		if err := rows.Scan(&id, &m.Kind); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		m.ID = idOf(id)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListIncome(ctx context.Context, periodID core.ID) ([]core.IncomeEntry, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return []core.IncomeEntry{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, income_type, description, amount FROM income WHERE period_id = ? ORDER BY date, id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	defer rows.Close()
	out := []core.IncomeEntry{}
	for rows.Next() {
		var (
			id           int64
			date, amount string
			e            = core.IncomeEntry{PeriodID: periodID}
		)
		if err := rows.Scan(&id, &date, &e.IncomeType, &e.Description, &amount); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		e.ID, e.Date, e.Amount = idOf(id), dateOf(date), core.ToAmount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListFixed(ctx context.Context, periodID core.ID) ([]core.FixedExpense, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return []core.FixedExpense{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, payment_method_id, date, description, paid, amount
		   FROM fixed_expenses WHERE period_id = ? ORDER BY date, id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list fixed expenses: %w", err)
	}
	defer rows.Close()
	out := []core.FixedExpense{}
	for rows.Next() {
		var (
			id           int64
			cat, pm      string
			date, amount string
			e            = core.FixedExpense{PeriodID: periodID}
		)
		if err := rows.Scan(&id, &cat, &pm, &date, &e.Description, &e.Paid, &amount); err != nil {
			return nil, fmt.Errorf("scan fixed expense: %w", err)
		}
		e.ID, e.CategoryID, e.PaymentMethodID = idOf(id), core.ID(cat), core.ID(pm)
		e.Date, e.Amount = dateOf(date), core.ToAmount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListVariable(ctx context.Context, periodID core.ID) ([]core.VariableExpense, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return []core.VariableExpense{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, payment_method_id, date, description, amount
		   FROM variable_expenses WHERE period_id = ? ORDER BY date, id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list variable expenses: %w", err)
	}
	defer rows.Close()
	out := []core.VariableExpense{}
	for rows.Next() {
		var (
			id           int64
			cat, pm      string
			date, amount string
			e            = core.VariableExpense{PeriodID: periodID}
		)
		if err := rows.Scan(&id, &cat, &pm, &date, &e.Description, &amount); err != nil {
			return nil, fmt.Errorf("scan variable expense: %w", err)
		}
		e.ID, e.CategoryID, e.PaymentMethodID = idOf(id), core.ID(cat), core.ID(pm)
		e.Date, e.Amount = dateOf(date), core.ToAmount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListInvestments(ctx context.Context, periodID core.ID) ([]core.Investment, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return []core.Investment{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount FROM investments WHERE period_id = ? ORDER BY date, id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()
	out := []core.Investment{}
	for rows.Next() {
		var (
			id           int64
			date, amount string
			i            = core.Investment{PeriodID: periodID}
		)
		if err := rows.Scan(&id, &date, &i.Description, &amount); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		i.ID, i.Date, i.Amount = idOf(id), dateOf(date), core.ToAmount(amount)
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, periodID core.ID) ([]core.InvestmentGoal, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return []core.InvestmentGoal{}, nil
	}
	var (
		id     int64
		target string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, target FROM investment_goals WHERE period_id = ?`, pid).Scan(&id, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.InvestmentGoal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return []core.InvestmentGoal{{ID: idOf(id), PeriodID: periodID, Target: core.ToAmount(target)}}, nil
}

// Summary aggregates the stored records of a period owned by userID.
func (r *SQLiteRepository) Summary(ctx context.Context, userID, periodID core.ID) (core.PeriodSummary, error) {
	pid, ok := parseID(periodID)
	if !ok {
		return core.PeriodSummary{}, fmt.Errorf("period %s: %w", periodID, source.ErrNotFound)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM periods WHERE id = ? AND user_id = ?`, pid, string(userID)).Scan(&n); err != nil {
		return core.PeriodSummary{}, fmt.Errorf("check period: %w", err)
	}
	if n == 0 {
		return core.PeriodSummary{}, fmt.Errorf("period %s: %w", periodID, source.ErrNotFound)
	}
	rs, err := source.Load(ctx, r, periodID)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return aggregate.Summarize(rs), nil
}

func (r *SQLiteRepository) CreatePeriod(ctx context.Context, userID core.ID, p core.Period) (core.Period, error) {
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Period{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if p.Active {
		if _, err := tx.ExecContext(ctx, `UPDATE periods SET active = 0 WHERE user_id = ?`, string(userID)); err != nil {
			return core.Period{}, fmt.Errorf("clear active: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO periods (user_id, year, month, active) VALUES (?, ?, ?, ?)`,
		string(userID), p.Year, p.Month, p.Active)
	if err != nil {
		return core.Period{}, fmt.Errorf("insert period: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Period{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Period{}, fmt.Errorf("commit: %w", err)
	}
	p.ID, p.UserID = idOf(id), userID
	r.logger.InfoContext(ctx, "Period created", log.FieldYear, p.Year, log.FieldMonth, p.Month, log.FieldPeriodID, p.ID)
	return p, nil
}

func (r *SQLiteRepository) ActivatePeriod(ctx context.Context, userID core.ID, year, month int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE periods SET active = (year = ? AND month = ?) WHERE user_id = ?`,
		year, month, string(userID)); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM periods WHERE user_id = ? AND active = 1`, string(userID)).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("period %04d-%02d: %w", year, month, source.ErrNotFound)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID core.ID, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	id, err := r.insert(ctx, `INSERT INTO categories (user_id, name) VALUES (?, ?)`, string(userID), c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) CreatePaymentMethod(ctx context.Context, userID core.ID, kind string) (core.PaymentMethod, error) {
	m := core.PaymentMethod{Kind: strings.TrimSpace(kind)}
	if err := m.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}
	id, err := r.insert(ctx, `INSERT INTO payment_methods (user_id, kind) VALUES (?, ?)`, string(userID), m.Kind)
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("insert payment method: %w", err)
	}
	m.ID = id
	return m, nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, _ core.ID, e core.IncomeEntry) (core.IncomeEntry, error) {
	if err := e.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}
	id, err := r.insert(ctx,
		`INSERT INTO income (period_id, date, income_type, description, amount) VALUES (?, ?, ?, ?, ?)`,
		string(e.PeriodID), e.Date.String(), e.IncomeType, e.Description, e.Amount.String())
	if err != nil {
		return core.IncomeEntry{}, fmt.Errorf("insert income: %w", err)
	}
	e.ID = id
	return e, nil
}

func (r *SQLiteRepository) CreateFixed(ctx context.Context, _ core.ID, e core.FixedExpense) (core.FixedExpense, error) {
	if err := e.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	id, err := r.insert(ctx,
		`INSERT INTO fixed_expenses (period_id, category_id, payment_method_id, date, description, paid, amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.PeriodID), string(e.CategoryID), string(e.PaymentMethodID), e.Date.String(), e.Description, e.Paid, e.Amount.String())
	if err != nil {
		return core.FixedExpense{}, fmt.Errorf("insert fixed expense: %w", err)
	}
	e.ID = id
	return e, nil
}

func (r *SQLiteRepository) CreateVariable(ctx context.Context, _ core.ID, e core.VariableExpense) (core.VariableExpense, error) {
	if err := e.Validate(); err != nil {
		return core.VariableExpense{}, err
	}
	id, err := r.insert(ctx,
		`INSERT INTO variable_expenses (period_id, category_id, payment_method_id, date, description, amount)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.PeriodID), string(e.CategoryID), string(e.PaymentMethodID), e.Date.String(), e.Description, e.Amount.String())
	if err != nil {
		return core.VariableExpense{}, fmt.Errorf("insert variable expense: %w", err)
	}
	e.ID = id
	return e, nil
}

func (r *SQLiteRepository) CreateInvestment(ctx context.Context, _ core.ID, i core.Investment) (core.Investment, error) {
	if err := i.Validate(); err != nil {
		return core.Investment{}, err
	}
	id, err := r.insert(ctx,
		`INSERT INTO investments (period_id, date, description, amount) VALUES (?, ?, ?, ?)`,
		string(i.PeriodID), i.Date.String(), i.Description, i.Amount.String())
	if err != nil {
		return core.Investment{}, fmt.Errorf("insert investment: %w", err)
	}
	i.ID = id
	return i, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, _ core.ID, g core.InvestmentGoal) (core.InvestmentGoal, error) {
	if g.PeriodID.IsZero() {
		return core.InvestmentGoal{}, core.ErrMissingPeriod
	}
	if err := core.ValidatePositive(g.Target); err != nil {
		return core.InvestmentGoal{}, err
	}
	id, err := r.insert(ctx, `INSERT INTO investment_goals (period_id, target) VALUES (?, ?)`, string(g.PeriodID), g.Target.String())
	if err != nil {
		return core.InvestmentGoal{}, fmt.Errorf("insert goal: %w", err)
	}
	g.ID = id
	return g, nil
}

// UpdateField loads the row, applies the change, validates and writes it back.
func (r *SQLiteRepository) UpdateField(ctx context.Context, kind source.Kind, id core.ID, change core.FieldChange) error {
	rid, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	switch kind {
	case source.KindIncome:
		var e core.IncomeEntry
		var pid int64
		var date, amount string
		err := r.db.QueryRowContext(ctx,
			`SELECT period_id, date, income_type, description, amount FROM income WHERE id = ?`, rid).
			Scan(&pid, &date, &e.IncomeType, &e.Description, &amount)
		if err != nil {
			return notFound(kind, id, err)
		}
		e.ID, e.PeriodID, e.Date, e.Amount = id, idOf(pid), dateOf(date), core.ToAmount(amount)
		if err := e.Apply(change); err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return err
		}
		return r.exec(ctx, `UPDATE income SET date = ?, income_type = ?, description = ?, amount = ? WHERE id = ?`,
			e.Date.String(), e.IncomeType, e.Description, e.Amount.String(), rid)

	case source.KindFixed:
		var e core.FixedExpense
		var pid int64
		var cat, pm, date, amount string
		err := r.db.QueryRowContext(ctx,
			`SELECT period_id, category_id, payment_method_id, date, description, paid, amount FROM fixed_expenses WHERE id = ?`, rid).
			Scan(&pid, &cat, &pm, &date, &e.Description, &e.Paid, &amount)
		if err != nil {
			return notFound(kind, id, err)
		}
		e.ID, e.PeriodID, e.CategoryID, e.PaymentMethodID = id, idOf(pid), core.ID(cat), core.ID(pm)
		e.Date, e.Amount = dateOf(date), core.ToAmount(amount)
		if err := e.Apply(change); err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return err
		}
		return r.exec(ctx,
			`UPDATE fixed_expenses SET category_id = ?, payment_method_id = ?, date = ?, description = ?, paid = ?, amount = ? WHERE id = ?`,
			string(e.CategoryID), string(e.PaymentMethodID), e.Date.String(), e.Description, e.Paid, e.Amount.String(), rid)

	case source.KindVariable:
		var e core.VariableExpense
		var pid int64
		var cat, pm, date, amount string
		err := r.db.QueryRowContext(ctx,
			`SELECT period_id, category_id, payment_method_id, date, description, amount FROM variable_expenses WHERE id = ?`, rid).
			Scan(&pid, &cat, &pm, &date, &e.Description, &amount)
		if err != nil {
			return notFound(kind, id, err)
		}
		e.ID, e.PeriodID, e.CategoryID, e.PaymentMethodID = id, idOf(pid), core.ID(cat), core.ID(pm)
		e.Date, e.Amount = dateOf(date), core.ToAmount(amount)
		if err := e.Apply(change); err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return err
		}
		return r.exec(ctx,
			`UPDATE variable_expenses SET category_id = ?, payment_method_id = ?, date = ?, description = ?, amount = ? WHERE id = ?`,
			string(e.CategoryID), string(e.PaymentMethodID), e.Date.String(), e.Description, e.Amount.String(), rid)
	}
	return fmt.Errorf("field update of %s: %w", kind, source.ErrUnsupported)
}

func (r *SQLiteRepository) UpdateInvestment(ctx context.Context, i core.Investment) error {
	if err := i.Validate(); err != nil {
		return err
	}
	rid, ok := parseID(i.ID)
	if !ok {
		return fmt.Errorf("investment %s: %w", i.ID, source.ErrNotFound)
	}
	return r.execOne(ctx, source.KindInvestment, i.ID,
		`UPDATE investments SET date = ?, description = ?, amount = ? WHERE id = ?`,
		i.Date.String(), i.Description, i.Amount.String(), rid)
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, id core.ID, target decimal.Decimal) error {
	if err := core.ValidatePositive(target); err != nil {
		return err
	}
	rid, ok := parseID(id)
	if !ok {
		return fmt.Errorf("goal %s: %w", id, source.ErrNotFound)
	}
	return r.execOne(ctx, source.KindGoal, id, `UPDATE investment_goals SET target = ? WHERE id = ?`, target.String(), rid)
}

var deleteStatements = map[source.Kind]string{
	source.KindIncome:     `DELETE FROM income WHERE id = ?`,
	source.KindFixed:      `DELETE FROM fixed_expenses WHERE id = ?`,
	source.KindVariable:   `DELETE FROM variable_expenses WHERE id = ?`,
	source.KindInvestment: `DELETE FROM investments WHERE id = ?`,
	source.KindGoal:       `DELETE FROM investment_goals WHERE id = ?`,
	source.KindCategory:   `DELETE FROM categories WHERE id = ?`,
	source.KindPayment:    `DELETE FROM payment_methods WHERE id = ?`,
	source.KindPeriod:     `DELETE FROM periods WHERE id = ?`,
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind source.Kind, id core.ID) error {
	stmt, ok := deleteStatements[kind]
	if !ok {
		return fmt.Errorf("delete of %s: %w", kind, source.ErrUnsupported)
	}
	rid, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	return r.execOne(ctx, kind, id, stmt, rid)
}

func (r *SQLiteRepository) insert(ctx context.Context, query string, args ...any) (core.ID, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return idOf(id), nil
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// execOne runs a statement that must touch exactly one row.
func (r *SQLiteRepository) execOne(ctx context.Context, kind source.Kind, id core.ID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	return nil
}

func notFound(kind source.Kind, id core.ID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, source.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}

func idOf(id int64) core.ID { return core.ID(strconv.FormatInt(id, 10)) }

func parseID(id core.ID) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	return n, err == nil
}

func dateOf(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}
