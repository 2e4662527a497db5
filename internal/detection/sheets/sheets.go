// Package sheets reads transaction history from a Google Sheets tab. The
// tab must have a header row with at least User, Date, Description and
// Amount columns; Category and Account are optional.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/devintruefi/91825truefi-sub000/internal/core"
	"github.com/devintruefi/91825truefi-sub000/internal/detection"
)

const DefaultSheetName = "Transactions"

// Config selects the spreadsheet and credentials. CredentialsJSON wins over
// CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ detection.TransactionSource = (*Source)(nil)

// New builds a Source authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets transaction source ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheetNameOrDefault(cfg.SheetName))
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Source {
	return &Source{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetNameOrDefault(sheetName),
	}
}

func sheetNameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultSheetName
	}
	return name
}

func (s *Source) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rng := fmt.Sprintf("%s!A:F", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rng, err)
	}

	txs, skipped, err := parseTransactions(resp.Values, userID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unreadable transaction rows",
			"sheet", s.sheetName,
			"user_id", userID,
			"skipped", skipped)
	}
	return txs, nil
}

type columns struct {
	user, date, desc, amount, category, account int
}

func findColumns(headers []string) (columns, error) {
	c := columns{
		user:     indexOf(headers, "User"),
		date:     indexOf(headers, "Date"),
		desc:     indexOf(headers, "Description"),
		amount:   indexOf(headers, "Amount"),
		category: indexOf(headers, "Category"),
		account:  indexOf(headers, "Account"),
	}
	var missing []string
	for name, idx := range map[string]int{"User": c.user, "Date": c.date, "Description": c.desc, "Amount": c.amount} {
		if idx == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return c, fmt.Errorf("unexpected transactions header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	return c, nil
}

// parseTransactions keeps the rows of userID. Rows that cannot be parsed are
// counted and skipped so one bad cell does not hide the whole history.
func parseTransactions(values [][]interface{}, userID string) ([]core.Transaction, int, error) {
	if len(values) == 0 {
		return nil, 0, nil
	}
	cols, err := findColumns(toStrings(values[0]))
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []core.Transaction
		skipped int
	)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		if strings.TrimSpace(safeGet(row, cols.user)) != userID {
			continue
		}
		tx, ok := parseRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out, skipped, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

func parseRow(row []string, c columns) (core.Transaction, bool) {
	var date time.Time
	var err error
	raw := strings.TrimSpace(safeGet(row, c.date))
	for _, layout := range dateLayouts {
		if date, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return core.Transaction{}, false
	}
	amount, err := core.ParseSignedAmount(safeGet(row, c.amount))
	if err != nil {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		Date:        core.Date{Time: date},
		Description: strings.TrimSpace(safeGet(row, c.desc)),
		Amount:      amount,
		Category:    strings.TrimSpace(safeGet(row, c.category)),
		Account:     strings.TrimSpace(safeGet(row, c.account)),
	}
	if tx.Validate() != nil {
		return core.Transaction{}, false
	}
	return tx, true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, s := range arr {
		if strings.EqualFold(strings.TrimSpace(s), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
