package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"bills/internal/core"
	"bills/internal/ledger"
	"bills/internal/log"
	ports "bills/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var _ ports.LedgerSink = (*Client)(nil)

// Config selects the target spreadsheet tab and the service account used
// to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
// Credentials come from cfg, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", log.FieldPath, serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// PublishLedger clears the ledger tab and writes the header and every
// record starting at A1. Values are sent RAW so merchant names are never
// interpreted as formulas.
func (c *Client) PublishLedger(ctx context.Context, records []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("validation failed for record %d: %w", i+1, err)
		}
	}

	sheet := quoteSheet(c.sheetName)
	clearRange := fmt.Sprintf("%s!A:K", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", clearRange, err)
	}

	values := ledgerValues(records)
	ref := fmt.Sprintf("%s!A1:K%d", sheet, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", ref, err)
	}

	c.logger.InfoContext(ctx, "Ledger exported to Google Sheets",
		log.FieldSheetsRef, ref,
		log.FieldRecords, len(records))
	return ref, nil
}

// ledgerValues lays out records like the ledger file. Amounts are numbers
// so the sheet can aggregate them.
func ledgerValues(records []core.Transaction) [][]interface{} {
	values := make([][]interface{}, 0, len(records)+1)

	header := make([]interface{}, len(ledger.Header))
	for i, h := range ledger.Header {
		header[i] = h
	}
	values = append(values, header)

	for _, r := range records {
		cols := ledger.FormatRow(r)
		row := make([]interface{}, len(cols))
		for i, v := range cols {
			row[i] = v
		}
		row[4] = r.Amount.Yuan()
		values = append(values, row)
	}
	return values
}

// quoteSheet quotes sheet names for A1 notation when they contain
// anything but letters, digits and underscores.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
