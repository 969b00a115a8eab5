package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"tournament-bot/internal/models"
)

// Column layout of the registrant worksheet; row 1 is the header.
const (
	colNickname = iota
	colPlayerID
	colAccountID
	colRegisteredAt
)

func (c *Client) readAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, c.worksheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, c.worksheet+"!A:D", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) AppendRegistrant(ctx context.Context, r models.Registrant) error {
	if err := c.appendRow(ctx, r.Row()); err != nil {
		return fmt.Errorf("append registrant: %w", err)
	}
	return nil
}

func (c *Client) ListRegistrants(ctx context.Context) ([]models.Registrant, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read registrants: %w", err)
	}
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, len(v))
		for i := range v {
			row[i] = get(v, i)
		}
		rows = append(rows, row)
	}
	return ParseRows(rows), nil
}

// ClearRegistrants removes every row below the header.
func (c *Client) ClearRegistrants(ctx context.Context) error {
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, c.worksheet+"!A2:Z", &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear registrants: %w", err)
	}
	return nil
}

// ParseRows turns worksheet or CSV rows into registrants. The first row is
// the header; rows without a numeric account id in the third column are
// skipped.
func ParseRows(rows [][]string) []models.Registrant {
	out := []models.Registrant{}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= colAccountID {
			continue
		}
		accountID, ok := parseAccountID(row[colAccountID])
		if !ok {
			continue
		}
		r := models.Registrant{
			Nickname:  strings.TrimSpace(row[colNickname]),
			PlayerID:  strings.TrimSpace(row[colPlayerID]),
			AccountID: accountID,
		}
		if len(row) > colRegisteredAt {
			r.RegisteredAt = parseTimestamp(row[colRegisteredAt])
		}
		out = append(out, r)
	}
	return out
}

func parseAccountID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
