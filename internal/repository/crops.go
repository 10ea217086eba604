package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/models"
)

// PostgresCropRepository stores crops in PostgreSQL.
//
// Every statement that touches an individual crop filters on both id and
// username, so a row owned by someone else behaves exactly like a missing
// row. Soft-deleted rows are invisible.
type PostgresCropRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCropRepository creates a new PostgresCropRepository using the provided *sql.DB.
func NewPostgresCropRepository(db *sql.DB) *PostgresCropRepository {
	return &PostgresCropRepository{DB: db}
}

const cropColumns = `id, username, crop_name, crop_type, planting_date, expected_harvest, area, status, notes, created_at, updated_at`

// Create inserts crop. ID, Username and timestamps must already be set.
func (r *PostgresCropRepository) Create(ctx context.Context, crop *models.Crop) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO crops (`+cropColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, crop.ID, crop.Username, crop.CropName, crop.CropType, crop.PlantingDate,
		crop.ExpectedHarvest, crop.Area, string(crop.Status), crop.Notes, crop.CreatedAt, crop.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert crop: %w", err)
	}
	return nil
}

// ListByOwner returns the live crops of username, newest first.
func (r *PostgresCropRepository) ListByOwner(ctx context.Context, username string) ([]models.Crop, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+cropColumns+` FROM crops
		WHERE username = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	defer rows.Close()

	crops := make([]models.Crop, 0)
	for rows.Next() {
		crop, err := scanCrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		crops = append(crops, *crop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	return crops, nil
}

// GetByID returns the crop with id if username owns it.
func (r *PostgresCropRepository) GetByID(ctx context.Context, username, id string) (*models.Crop, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+cropColumns+` FROM crops
		WHERE id = $1 AND username = $2 AND deleted_at IS NULL
	`, id, username)
	crop, err := scanCrop(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidTextRepr {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select crop: %w", err)
	}
	return crop, nil
}

// Update overwrites the client-editable fields of a crop owned by username.
func (r *PostgresCropRepository) Update(ctx context.Context, username, id string, in models.CropInput, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE crops SET
			crop_name = $3,
			crop_type = $4,
			planting_date = $5,
			expected_harvest = $6,
			area = $7,
			status = $8,
			notes = $9,
			updated_at = $10
		WHERE id = $1 AND username = $2 AND deleted_at IS NULL
	`, id, username, in.CropName, in.CropType, in.PlantingDate, in.ExpectedHarvest,
		in.Area, string(in.Status), in.Notes, at)
	return affectedOne(res, err, "update crop")
}

// Delete soft-deletes a crop owned by username.
func (r *PostgresCropRepository) Delete(ctx context.Context, username, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE crops SET deleted_at = $3
		WHERE id = $1 AND username = $2 AND deleted_at IS NULL
	`, id, username, at)
	return affectedOne(res, err, "delete crop")
}

// Stats counts the live crops of username by status.
func (r *PostgresCropRepository) Stats(ctx context.Context, username string) (models.DashboardStats, error) {
	stats := models.DashboardStats{Username: username}
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM crops
		WHERE username = $1 AND deleted_at IS NULL
	`, username, string(models.StatusActive), string(models.StatusHarvested), string(models.StatusPlanning)).
		Scan(&stats.TotalCrops, &stats.ActiveCrops, &stats.HarvestedCrops, &stats.PlanningCrops)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("crop stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrop(s rowScanner) (*models.Crop, error) {
	var (
		crop   models.Crop
		status string
	)
	err := s.Scan(&crop.ID, &crop.Username, &crop.CropName, &crop.CropType, &crop.PlantingDate,
		&crop.ExpectedHarvest, &crop.Area, &status, &crop.Notes, &crop.CreatedAt, &crop.UpdatedAt)
	if err != nil {
		return nil, err
	}
	crop.Status = models.CropStatus(status)
	return &crop, nil
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		if pqCode(err) == pqInvalidTextRepr {
			return common.ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
