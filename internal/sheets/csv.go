package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"tournament-bot/internal/models"
)

// CSVSource reads the published CSV export of the worksheet. It is read only.
type CSVSource struct {
	url    string
	client *http.Client
}

func NewCSVSource(url string, client *http.Client) *CSVSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CSVSource{url: url, client: client}
}

func (s *CSVSource) ListRegistrants(ctx context.Context) ([]models.Registrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("csv request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch csv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch csv: unexpected status %s", resp.Status)
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return ParseRows(rows), nil
}
