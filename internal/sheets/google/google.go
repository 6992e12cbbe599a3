// Package google writes yearly reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financeiro/internal/core"
	"financeiro/internal/log"
	ports "financeiro/internal/sheets"
)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	// base name without year, e.g. "Resumo"; the year is prefixed.
	sheetBase string
	logger    *log.Logger
}

var (
	_ ports.ReportWriter = (*Exporter)(nil)
	_ ports.ReportReader = (*Exporter)(nil)
)

// NewFromEnv creates an exporter from environment variables.
// Required: GOOGLE_SPREADSHEET_ID and one of GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
// Optional: REPORT_SHEET_NAME (default "Resumo").
func NewFromEnv(ctx context.Context, logger *log.Logger) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(os.Getenv("REPORT_SHEET_NAME"))
	if base == "" {
		base = "Resumo"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base, logger: logger}, nil
}

// newSheetsService initializes a Sheets service with service account
// credentials.
func newSheetsService(ctx context.Context, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON), "scope", gsheet.SpreadsheetsScope)
	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// SheetName is "<year> <base>", followed by the user id when there is one.
func (e *Exporter) SheetName(userID core.ID, year int) string {
	return sheetName(e.sheetBase, userID, year)
}

func sheetName(base string, userID core.ID, year int) string {
	name := yearPrefixedName(base, year)
	if !userID.IsZero() {
		name += " " + string(userID)
	}
	return name
}

// WriteYearReport replaces the report sheet's content. The sheet is created
// when missing; a write whose figures match the stored ones is skipped.
func (e *Exporter) WriteYearReport(ctx context.Context, r ports.YearReport) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := e.SheetName(r.UserID, r.Year)

	exists, err := e.hasSheet(ctx, title)
	if err != nil {
		return err
	}
	if !exists {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}}}
		if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", title, err)
		}
		e.logger.InfoContext(ctx, "Created report sheet", log.FieldSheet, title)
	} else if current, ok, err := e.ReadYearReport(ctx, r.UserID, r.Year); err == nil && ok && current.Equal(r) {
		e.logger.DebugContext(ctx, "Report unchanged, skipping write", log.FieldSheet, title)
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", quote(title))
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	vr := &gsheet.ValueRange{Values: renderReport(r)}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, quote(title)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", title, err)
	}
	e.logger.InfoContext(ctx, "Wrote year report",
		log.FieldSheet, title, log.FieldUserID, string(r.UserID), log.FieldYear, r.Year)
	return nil
}

// ReadYearReport loads the stored report. ok is false when the sheet does
// not exist or is empty.
func (e *Exporter) ReadYearReport(ctx context.Context, userID core.ID, year int) (ports.YearReport, bool, error) {
	if e.svc == nil {
		return ports.YearReport{}, false, errors.New("sheets service not initialized")
	}
	title := e.SheetName(userID, year)
	rng := fmt.Sprintf("%s!A:F", quote(title))
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return ports.YearReport{}, false, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return ports.YearReport{}, false, nil
	}
	r, err := parseReport(resp.Values, userID, year)
	if err != nil {
		return ports.YearReport{}, false, err
	}
	return r, true, nil
}

func (e *Exporter) hasSheet(ctx context.Context, title string) (bool, error) {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// quote wraps a sheet title for A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
