package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

const DefaultWorksheet = "Sheet1"

type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	worksheet     string
}

// New connects with a service account. credentials is either a path to the
// key file or the key JSON itself.
func New(ctx context.Context, credentials, spreadsheetID, worksheet string) (*Client, error) {
	credentials = strings.TrimSpace(credentials)
	var cred option.ClientOption
	if strings.HasPrefix(credentials, "{") {
		cred = option.WithCredentialsJSON([]byte(credentials))
	} else {
		if _, err := os.Stat(credentials); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		cred = option.WithCredentialsFile(credentials)
	}
	return NewWithOptions(ctx, spreadsheetID, worksheet, cred, option.WithScopes(sheetsv4.SpreadsheetsScope))
}

func NewWithOptions(ctx context.Context, spreadsheetID, worksheet string, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

func (c *Client) Worksheet() string     { return c.worksheet }
