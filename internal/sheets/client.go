package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// writeChunkSize bounds a single Values.Update payload. Large fact
// tables are written in slices so one oversized request cannot fail
// the whole snapshot.
const writeChunkSize = 500

// Client talks to one Google spreadsheet. All calls go through a
// shared rate limiter sized for the Sheets API per-minute quota.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	limiter       *rate.Limiter
}

// NewClient builds a Client authenticated with service-account
// credentials JSON.
func NewClient(ctx context.Context, credentialsJSON []byte, spreadsheetID string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, eris.New("sheets: spreadsheet id is required")
	}
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		// 60 read/write requests per minute per user is the default
		// quota; stay just under it.
		limiter: rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
	}, nil
}

func (c *Client) ReadTable(ctx context.Context, name string) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sheets: wait for read slot")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rangeAll(name)).Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sheets: read %s", name)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) WriteTable(ctx context.Context, name string, rows [][]string) error {
	if err := c.ensureSheet(ctx, name); err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: wait for clear slot")
	}
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rangeAll(name), &sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return eris.Wrapf(err, "sheets: clear %s", name)
	}

	for start := 0; start < len(rows); start += writeChunkSize {
		end := start + writeChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		vr := &sheetsapi.ValueRange{Values: toInterfaceRows(rows[start:end])}
		target := fmt.Sprintf("'%s'!A%d", name, start+1)

		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "sheets: wait for write slot")
		}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return eris.Wrapf(err, "sheets: write %s rows %d-%d", name, start+1, end)
		}
		zap.L().Debug("sheets: wrote chunk",
			zap.String("table", name),
			zap.Int("from", start+1),
			zap.Int("to", end))
	}
	return nil
}

func (c *Client) AppendRows(ctx context.Context, name string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.ensureSheet(ctx, name); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: wait for append slot")
	}
	vr := &sheetsapi.ValueRange{Values: toInterfaceRows(rows)}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rangeAll(name), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return eris.Wrapf(err, "sheets: append to %s", name)
	}
	return nil
}

// ensureSheet creates the named sheet when the spreadsheet does not
// have it yet.
func (c *Client) ensureSheet(ctx context.Context, name string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: wait for metadata slot")
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return eris.Wrap(err, "sheets: get spreadsheet")
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: name},
			},
		}},
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: wait for create slot")
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return eris.Wrapf(err, "sheets: create sheet %s", name)
	}
	zap.L().Info("sheets: created sheet", zap.String("table", name))
	return nil
}

func rangeAll(name string) string {
	return fmt.Sprintf("'%s'", name)
}

// isMissingSheet recognizes the 400 the API returns when a range
// names a sheet that does not exist.
func isMissingSheet(err error) bool {
	var apiErr *googleapi.Error
	if eris.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "Unable to parse range")
	}
	return false
}

func toInterfaceRows(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		out[i] = cells
	}
	return out
}
