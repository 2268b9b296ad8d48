package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
)

// ModalityRepository manages the modality catalogue.
type ModalityRepository struct {
	db *sqlx.DB
}

// NewModalityRepository constructs the repository.
func NewModalityRepository(db *sqlx.DB) *ModalityRepository {
	return &ModalityRepository{db: db}
}

// List returns modalities ordered by name.
func (r *ModalityRepository) List(ctx context.Context, filter models.ModalityFilter) ([]models.Modality, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("SELECT id, code, name, description, active, created_at FROM modalities%s ORDER BY name LIMIT %d OFFSET %d", clause, p.PageSize, (p.Page-1)*p.PageSize)

	conn := database.Conn(ctx, r.db)
	var modalities []models.Modality
	if err := sqlx.SelectContext(ctx, conn, &modalities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list modalities: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, conn, &total, "SELECT COUNT(*) FROM modalities"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count modalities: %w", err)
	}
	return modalities, total, nil
}

// FindByID returns a modality.
func (r *ModalityRepository) FindByID(ctx context.Context, id string) (*models.Modality, error) {
	var modality models.Modality
	const query = `SELECT id, code, name, description, active, created_at FROM modalities WHERE id = $1`
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &modality, query, id); err != nil {
		return nil, err
	}
	return &modality, nil
}

// Create inserts a modality.
func (r *ModalityRepository) Create(ctx context.Context, modality *models.Modality) error {
	if modality.ID == "" {
		modality.ID = uuid.NewString()
	}
	if modality.CreatedAt.IsZero() {
		modality.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	const query = `INSERT INTO modalities (id, code, name, description, active, created_at) VALUES (:id, :code, :name, :description, :active, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, modality); err != nil {
		return fmt.Errorf("create modality: %w", err)
	}
	return nil
}
