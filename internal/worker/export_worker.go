// Package worker turns period change events into spreadsheet exports.
package worker

import (
	"context"
	"errors"
	"fmt"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/session"
	"financeiro/internal/sheets"
)

// Dashboards is the part of the services layer the worker reads.
type Dashboards interface {
	InvalidatePeriod(userID, periodID core.ID)
	YearDashboard(ctx context.Context, userID core.ID, year int) (services.YearDashboard, error)
	GoalComparison(ctx context.Context, userID core.ID, year int) (services.GoalDashboard, error)
}

// ExportWorker rebuilds and writes the yearly report of every period that
// changed.
type ExportWorker struct {
	dashboards Dashboards
	writer     sheets.ReportWriter
	logger     *log.Logger
}

func NewExportWorker(dashboards Dashboards, writer sheets.ReportWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		dashboards: dashboards,
		writer:     writer,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandlePeriodChanged processes a single event from AMQP. A returned error
// makes the message be requeued.
func (w *ExportWorker) HandlePeriodChanged(ctx context.Context, msg *amqp.PeriodChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing period change",
		log.FieldUserID, string(msg.UserID),
		log.FieldPeriodID, string(msg.PeriodID),
		log.FieldYear, msg.Year)

	w.dashboards.InvalidatePeriod(msg.UserID, msg.PeriodID)
	if err := w.ExportYear(ctx, msg.UserID, msg.Year); err != nil {
		return fmt.Errorf("export %d for user %s: %w", msg.Year, msg.UserID, err)
	}
	return nil
}

// ExportYear writes the report of one user and year.
func (w *ExportWorker) ExportYear(ctx context.Context, userID core.ID, year int) error {
	dash, err := w.dashboards.YearDashboard(ctx, userID, year)
	if errors.Is(err, session.ErrStaleSelection) {
		// a newer load for the same user replaced this one; retry once
		dash, err = w.dashboards.YearDashboard(ctx, userID, year)
	}
	if err != nil {
		return fmt.Errorf("year dashboard: %w", err)
	}
	goals, err := w.dashboards.GoalComparison(ctx, userID, dash.Year)
	if err != nil {
		return fmt.Errorf("goal comparison: %w", err)
	}
	report := BuildReport(userID, dash, goals)
	if err := w.writer.WriteYearReport(ctx, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(dash.Warnings) > 0 {
		w.logger.WarnContext(ctx, "Report exported with missing periods",
			log.FieldUserID, string(userID), log.FieldYear, dash.Year, log.FieldCount, len(dash.Warnings))
	}
	return nil
}

// ExportAll writes the current year of each user, continuing past failures.
// It backs up the event stream at worker startup.
func (w *ExportWorker) ExportAll(ctx context.Context, userIDs []core.ID, year int) error {
	var errs []error
	exported := 0
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.ExportYear(ctx, id, year); err != nil {
			w.logger.ErrorContext(ctx, "Startup export failed",
				log.FieldUserID, string(id), log.FieldError, err.Error())
			errs = append(errs, err)
			continue
		}
		exported++
	}
	w.logger.InfoContext(ctx, "Startup export completed",
		"total", len(userIDs), "exported", exported, "errors", len(errs))
	return errors.Join(errs...)
}

// BuildReport lays a year dashboard and its goals out as a report.
func BuildReport(userID core.ID, dash services.YearDashboard, goals services.GoalDashboard) sheets.YearReport {
	r := sheets.YearReport{UserID: userID, Year: dash.Year}
	for m := range r.Months {
		r.Months[m] = sheets.MonthRow{
			Label:    goals.Labels[m],
			Income:   dash.Series.Income[m].Round(2),
			Expenses: dash.Series.Expenses[m].Round(2),
			Invested: dash.Series.Invested[m].Round(2),
			Balance:  dash.Series.Balance[m].Round(2),
			Goal:     goals.Goal[m].Round(2),
		}
	}
	for _, c := range dash.ByCategory {
		r.Categories = append(r.Categories, sheets.CategoryRow{Name: c.Label, Amount: c.Amount.Round(2)})
	}
	return r
}
