// Package export renders registrants and dispatched matches as a workbook.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tournament-bot/internal/models"
)

const (
	SheetRegistrants = "Registrants"
	SheetMatches     = "Matches"
	ContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	registrantHeader = []interface{}{"nickname", "pubg_id", "telegram_id", "registration_time"}
	matchHeader      = []interface{}{"match_id", "lobby_id", "players", "created_at"}
)

// Workbook builds the xlsx file. Match passwords are left out.
func Workbook(registrants []models.Registrant, matches []models.Match) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRegistrants); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	rows := make([][]interface{}, 0, len(registrants)+1)
	rows = append(rows, registrantHeader)
	for _, r := range registrants {
		rows = append(rows, r.Row())
	}
	if err := writeRows(f, SheetRegistrants, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SheetMatches); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	rows = rows[:0]
	rows = append(rows, matchHeader)
	for _, m := range matches {
		names := make([]string, 0, len(m.Players))
		for _, p := range m.Players {
			names = append(names, p.Nickname)
		}
		rows = append(rows, []interface{}{m.MatchID, m.LobbyID, strings.Join(names, ", "), m.CreatedAt.Format(time.RFC3339)})
	}
	if err := writeRows(f, SheetMatches, rows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func FileName(now time.Time) string {
	return "registrants-" + now.Format("20060102-1504") + ".xlsx"
}
