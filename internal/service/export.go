package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"ace-league/internal/domain"
)

var exportHeader = []string{"session", "date", "team1", "team2", "score1", "score2", "elo_delta"}

// ExportCSV renders the full match history, newest session first, as a
// UTF-8 CSV with a BOM so spreadsheet tools detect the encoding.
func (s *LeagueService) ExportCSV() ([]byte, error) {
	rows := s.exportRows()

	var buf bytes.Buffer
	buf.WriteString("\uFEFF")

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, domain.Persistence("write csv header", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, domain.Persistence("write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, domain.Persistence("flush csv", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders the same history as a single-sheet workbook.
func (s *LeagueService) ExportXLSX() ([]byte, error) {
	rows := s.exportRows()

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "History"
	f.SetSheetName("Sheet1", sheet)

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, domain.Persistence("write xlsx header", err)
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, domain.Persistence("write xlsx row", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, domain.Persistence("write xlsx", err)
	}
	return buf.Bytes(), nil
}

func (s *LeagueService) exportRows() [][]string {
	rows := [][]string{}
	for _, session := range s.HistorySessions() {
		for _, m := range session.Matches {
			rows = append(rows, []string{
				session.SessionNum,
				session.Date,
				strings.Join(m.T1Names, " / "),
				strings.Join(m.T2Names, " / "),
				fmt.Sprintf("%d", m.Score1),
				fmt.Sprintf("%d", m.Score2),
				fmt.Sprintf("%.1f", m.EloDelta),
			})
		}
	}
	return rows
}
