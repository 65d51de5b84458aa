package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/echolingo/listening-service/internal/models"
)

func TestExportService_RequiresFinishedSession(t *testing.T) {
	sessions, _, _ := newTestSessionService(t, 1)
	exporter := NewExportService(sessions, testLogger())
	ctx := context.Background()

	snap, err := sessions.Start(ctx, startRequest())
	require.NoError(t, err)

	_, err = exporter.ExportSessionResults(ctx, snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFinished)

	_, err = exporter.ExportSessionResults(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExportService_WorkbookContents(t *testing.T) {
	sessions, _, _ := newTestSessionService(t, 2)
	exporter := NewExportService(sessions, testLogger())
	ctx := context.Background()

	snap, err := sessions.Start(ctx, startRequest())
	require.NoError(t, err)
	id := snap.SessionID

	answerQuestion(t, sessions, id, models.ChoiceA)
	_, err = sessions.NextQuestion(ctx, id)
	require.NoError(t, err)
	_, err = sessions.Finish(ctx, id)
	require.NoError(t, err)

	data, err := exporter.ExportSessionResults(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Summary", "Questions", "MCQ Log"}, f.GetSheetList())

	sessionID, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, id, sessionID)

	// Question 1 was answered correctly, question 2 skipped at finish.
	result1, err := f.GetCellValue("Questions", "E2")
	require.NoError(t, err)
	assert.Equal(t, "Correct", result1)
	result2, err := f.GetCellValue("Questions", "E3")
	require.NoError(t, err)
	assert.Equal(t, "Skipped", result2)

	// Three MCQ attempts were logged for question 1.
	step3, err := f.GetCellValue("MCQ Log", "B4")
	require.NoError(t, err)
	assert.Equal(t, "3", step3)
}
