package engagement

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var _ Recorder = (*SheetsRecorder)(nil)

// SheetsSettings addresses the spreadsheet rows are appended to.
type SheetsSettings struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string // service account JSON
	Endpoint        string // optional API endpoint override
}

// SheetsRecorder appends rows with spreadsheets.values.append, letting the
// sheet parse values as if typed by a user.
type SheetsRecorder struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	appendRange   string
}

// NewSheetsRecorder builds the Sheets client. extra options are applied after
// the ones derived from s.
func NewSheetsRecorder(ctx context.Context, s SheetsSettings, extra ...option.ClientOption) (*SheetsRecorder, error) {
	if s.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	sheetName := s.SheetName
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if s.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.CredentialsFile))
	}
	if s.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsRecorder{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: s.SpreadsheetID,
		appendRange:   sheetName + "!A1",
	}, nil
}

func (s *SheetsRecorder) Record(ctx context.Context, r Record) error {
	vr := &sheets.ValueRange{Values: [][]any{r.Row()}}
	_, err := s.values.Append(s.spreadsheetID, s.appendRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append sheet row: %w", err)
	}
	return nil
}
