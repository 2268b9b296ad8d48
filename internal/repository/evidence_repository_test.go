package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/models"
)

func TestEvidenceRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectExec("INSERT INTO training_evidence").WillReturnResult(sqlmock.NewResult(1, 1))
	ev := &models.Evidence{TrainingID: "t-1", OriginalFilename: "a.png", FilePath: "t-1/a.png", SizeBytes: 10, MimeType: "image/png", Kind: models.EvidenceKindPhoto, UploadedBy: "c-1"}
	require.NoError(t, repo.Create(context.Background(), ev))
	assert.NotEmpty(t, ev.ID)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM training_evidence WHERE training_id = $1 ORDER BY uploaded_at, id")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "training_id", "original_filename", "file_path", "size_bytes", "mime_type", "kind", "description", "uploaded_by", "uploaded_at"}).
			AddRow(ev.ID, "t-1", "a.png", "t-1/a.png", 10, "image/png", "PHOTO", nil, "c-1", now))

	items, err := repo.ListByTraining(context.Background(), "t-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t-1/a.png", items[0].FilePath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM training_evidence WHERE id = $1")).WithArgs("x").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "x"), sql.ErrNoRows)
}
