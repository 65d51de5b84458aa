package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/utils"
)

// ExportService renders a finished session as an Excel workbook for review
// outside the app: a summary sheet, the per-question review and the raw MCQ
// attempt log.
type ExportService interface {
	ExportSessionResults(ctx context.Context, sessionID string) ([]byte, error)
}

type exportService struct {
	sessions SessionService
	logger   utils.Logger
}

func NewExportService(sessions SessionService, logger utils.Logger) ExportService {
	return &exportService{sessions: sessions, logger: logger}
}

func (s *exportService) ExportSessionResults(ctx context.Context, sessionID string) ([]byte, error) {
	sess, err := s.sessions.SessionCopy(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Results == nil {
		return nil, ErrSessionNotFinished
	}

	f := excelize.NewFile()

	if err := s.writeSummarySheet(f, &sess); err != nil {
		return nil, err
	}
	if err := s.writeQuestionsSheet(f, &sess); err != nil {
		return nil, err
	}
	if err := s.writeMCQLogSheet(f, &sess); err != nil {
		return nil, err
	}

	// Drop the default sheet so Summary opens first.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("session results exported", "session_id", sessionID, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (s *exportService) writeSummarySheet(f *excelize.File, sess *models.TestSession) error {
	sheetName := "Summary"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	rows := [][]interface{}{
		{"Session ID", sess.ID},
		{"User", sess.UserKey},
		{"Level", string(sess.Level)},
		{"Category", sess.Category},
		{"Set", sess.SetIndex + 1},
		{"Started At", sess.StartedAt.Format("2006-01-02 15:04:05")},
	}
	if sess.FinishedAt != nil {
		rows = append(rows, []interface{}{"Finished At", sess.FinishedAt.Format("2006-01-02 15:04:05")})
	}
	r := sess.Results
	rows = append(rows,
		[]interface{}{"Listening Score (%)", r.Score},
		[]interface{}{"Listening Correct", fmt.Sprintf("%d / %d", r.Correct, r.Total)},
		[]interface{}{"MCQ Score (%)", r.MCQScore},
		[]interface{}{"MCQ Correct", fmt.Sprintf("%d / %d", r.MCQCorrect, r.MCQTotal)},
	)

	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+1)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}

func (s *exportService) writeQuestionsSheet(f *excelize.File, sess *models.TestSession) error {
	sheetName := "Questions"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []string{
		"#", "Transcript", "Correct Choice", "Selected Choice", "Result",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, q := range sess.Questions {
		row := []interface{}{rowIndex + 1, q.Audio.Transcript, string(q.Audio.CorrectLabel)}

		ans := sess.Answers[rowIndex]
		switch {
		case ans == nil || ans.Skipped:
			row = append(row, "", "Skipped")
		case ans.IsCorrect:
			row = append(row, string(ans.Selected), "Correct")
		default:
			row = append(row, string(ans.Selected), "Wrong")
		}

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}

func (s *exportService) writeMCQLogSheet(f *excelize.File, sess *models.TestSession) error {
	sheetName := "MCQ Log"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []string{"Question", "Step", "Prompt", "Selected", "Result"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, entry := range sess.MCQLog {
		prompt := ""
		if entry.QuestionIndex < len(sess.Questions) {
			q := sess.Questions[entry.QuestionIndex]
			if entry.Step >= 1 && entry.Step <= len(q.Steps) {
				prompt = q.Steps[entry.Step-1].Prompt
			}
		}

		result := "Wrong"
		if entry.IsCorrect {
			result = "Correct"
		}

		row := []interface{}{entry.QuestionIndex + 1, entry.Step, prompt, entry.Selected, result}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}
