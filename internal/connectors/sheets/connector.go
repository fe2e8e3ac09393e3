package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fs1diag/internal/config"
	"fs1diag/internal/connectors"
)

// Connector pulls the case export kept in a Google Sheets workbook.
type Connector struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("SHEETS_SPREADSHEET_ID", cfg.SheetsSpreadsheetID); err != nil {
		return nil, err
	}
	ts, err := connectors.GoogleTokenSource(ctx, cfg, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc, spreadsheetID: cfg.SheetsSpreadsheetID, readRange: cfg.SheetsRange}, nil
}

// FetchValues returns the range as displayed in the sheet, header row first.
// Timestamps come back in the sheet's display format and go through the
// normal timestamp parsing.
func (c *Connector) FetchValues(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", c.readRange, err)
	}
	return resp.Values, nil
}
