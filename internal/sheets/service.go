// Package sheets wraps the Google Sheets API for the invoice ledger and
// the client directory. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS file path or inline GOOGLE_CREDENTIALS
// JSON), the same way every other Google integration in this tool works.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"invoicer/internal/logger"
)

// Service is a thin client bound to one spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewService creates a Sheets client for the given spreadsheet. The
// argument may be a bare spreadsheet ID or a full Google Sheets URL.
func NewService(ctx context.Context, idOrURL string) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := resolveSpreadsheetID(idOrURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	creds, err := readCredentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func readCredentials() ([]byte, error) {
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, fmt.Errorf("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")
}

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// resolveSpreadsheetID accepts either a spreadsheet ID or a sheet URL.
func resolveSpreadsheetID(idOrURL string) (string, error) {
	if matches := spreadsheetURLPattern.FindStringSubmatch(idOrURL); len(matches) >= 2 {
		return matches[1], nil
	}
	if idOrURL == "" {
		return "", fmt.Errorf("spreadsheet ID is empty")
	}
	return idOrURL, nil
}

// EnsureSheet makes sure a worksheet with the given title exists and has
// the expected header row. The check-then-create is not atomic; for a
// single-user tool a lost race at worst creates the sheet twice, which the
// API rejects on the second attempt.
func (s *Service) EnsureSheet(ctx context.Context, title string, headers []string) error {
	const op = "EnsureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	exists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == title {
			exists = true
			break
		}
	}

	if !exists {
		s.log.Info().Str("sheet", title).Msg("Creating worksheet")

		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				}},
			},
		}
		if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("%s: failed to create sheet %s: %w", op, title, err)
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", title, columnLetter(len(headers)))
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to read headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.log.Info().Str("sheet", title).Msg("Writing header row")

		row := make([]interface{}, len(headers))
		for i, h := range headers {
			row[i] = h
		}
		valueRange := &sheets.ValueRange{Values: [][]interface{}{row}}
		_, err = s.sheetsService.Spreadsheets.Values.Update(
			s.spreadsheetID,
			headerRange,
			valueRange,
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to write headers: %w", op, err)
		}
	}

	return nil
}

// ReadRange reads values from the given A1-notation range.
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Read range from spreadsheet")

	return resp.Values, nil
}

// Append appends rows after the existing data in the given range.
func (s *Service) Append(ctx context.Context, rangeSpec string, values [][]interface{}) error {
	const op = "Append"

	valueRange := &sheets.ValueRange{Values: values}
	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		rangeSpec,
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append to %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(values)).
		Str("range", rangeSpec).
		Msg("Appended rows to spreadsheet")

	return nil
}

// Update overwrites the given range with values.
func (s *Service) Update(ctx context.Context, rangeSpec string, values [][]interface{}) error {
	const op = "Update"

	valueRange := &sheets.ValueRange{Values: values}
	_, err := s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		rangeSpec,
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to update %s: %w", op, rangeSpec, err)
	}
	return nil
}

// Clear empties the given range.
func (s *Service) Clear(ctx context.Context, rangeSpec string) error {
	const op = "Clear"

	_, err := s.sheetsService.Spreadsheets.Values.Clear(
		s.spreadsheetID,
		rangeSpec,
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to clear %s: %w", op, rangeSpec, err)
	}
	return nil
}

// columnLetter converts a 1-based column count to its A1 column letter.
// Ledger schemas stay well within two letters.
func columnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}
