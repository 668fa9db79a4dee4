package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/studysync/pkg/models"
)

const leaderboardSheet = "Sheet1"

var leaderboardHeader = []any{"Rank", "Name", "User ID", "Score", "Joined At", "Last Active At"}

// WriteLeaderboard writes a ranked leaderboard as an .xlsx workbook to w
func WriteLeaderboard(w io.Writer, session *models.PracticeSession, entries []models.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(leaderboardSheet, "A1", &[]any{"Session", session.SessionCode}); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}
	if err := f.SetSheetRow(leaderboardSheet, "A3", &leaderboardHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(leaderboardSheet, "A3", "F3", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		row := []any{
			entry.Rank,
			entry.DisplayName,
			entry.UserID,
			entry.Score,
			entry.JoinedAt.UTC().Format("2006-01-02 15:04:05"),
			entry.LastActiveAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(leaderboardSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(leaderboardSheet, "B", "C", 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
