package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kharcha/internal/log"
	ports "kharcha/internal/sheets"
)

// clearRange covers every column the mirror writes.
const clearRange = "A:E"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.SnapshotMirror = (*Client)(nil)

// Options configures the Sheets client. CredentialsJSON wins over
// CredentialsFile. Endpoint and HTTPClient are for tests and proxies; with
// HTTPClient set no credentials are loaded.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Snapshot"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var clientOpts []goption.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, goption.WithEndpoint(opts.Endpoint))
	}

	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, goption.WithHTTPClient(opts.HTTPClient))
		return gsheet.NewService(ctx, clientOpts...)
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", log.FieldComponent, log.ComponentSheets)
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file",
			log.FieldComponent, log.ComponentSheets,
			"path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	clientOpts = append(clientOpts,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Mirror clears the mirror sheet and writes the snapshot table from A1.
func (c *Client) Mirror(ctx context.Context, s ports.Snapshot) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	cleared := fmt.Sprintf("%s!%s", c.sheetName, clearRange)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, cleared, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", cleared, err)
	}

	rng := fmt.Sprintf("%s!A1", c.sheetName)
	vr := &gsheet.ValueRange{Values: ports.Table(s)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	updated := resp.UpdatedRange
	if updated == "" {
		updated = rng
	}
	slog.DebugContext(ctx, "Snapshot mirrored",
		log.FieldComponent, log.ComponentSheets,
		log.FieldGeneration, s.Generation,
		"range", updated,
		"cells", resp.UpdatedCells)
	return updated, nil
}
