package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CropRepository defines the owner-scoped persistence operations needed by
// CropService. Implementations must filter every statement on the owner.
type CropRepository interface {
	Create(ctx context.Context, crop *models.Crop) error
	ListByOwner(ctx context.Context, username string) ([]models.Crop, error)
	GetByID(ctx context.Context, username, id string) (*models.Crop, error)
	Update(ctx context.Context, username, id string, in models.CropInput, at time.Time) error
	Delete(ctx context.Context, username, id string, at time.Time) error
	Stats(ctx context.Context, username string) (models.DashboardStats, error)
}

// CropService scopes every crop operation to the authenticated owner.
//
// Outcomes are explicit: nil on success, common.ErrNotFound when the crop is
// missing or owned by someone else (the two are indistinguishable),
// common.ErrUnauthenticated when no owner was resolved, and
// common.ErrDependency for storage failures.
type CropService struct {
	repo CropRepository
	now  func() time.Time
	log  *zap.Logger
}

// NewCropService constructs a CropService. now may be nil.
func NewCropService(repo CropRepository, now func() time.Time, log *zap.Logger) *CropService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CropService{repo: repo, now: now, log: log}
}

// List returns the owner's crops.
func (s *CropService) List(ctx context.Context, owner string) ([]models.Crop, error) {
	if owner == "" {
		return nil, common.ErrUnauthenticated
	}
	crops, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, s.dependency("list crops", owner, err)
	}
	return crops, nil
}

// Create stores a new crop for owner. The owner is taken from the argument,
// never from in.
func (s *CropService) Create(ctx context.Context, owner string, in models.CropInput) (*models.Crop, error) {
	if owner == "" {
		return nil, common.ErrUnauthenticated
	}
	in = normalize(in)
	now := s.now().UTC()
	crop := &models.Crop{
		ID:              uuid.NewString(),
		Username:        owner,
		CropName:        in.CropName,
		CropType:        in.CropType,
		PlantingDate:    in.PlantingDate,
		ExpectedHarvest: in.ExpectedHarvest,
		Area:            in.Area,
		Status:          in.Status,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, crop); err != nil {
		return nil, s.dependency("create crop", owner, err)
	}
	return crop, nil
}

// Get returns one of the owner's crops.
func (s *CropService) Get(ctx context.Context, owner, id string) (*models.Crop, error) {
	if owner == "" {
		return nil, common.ErrUnauthenticated
	}
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	crop, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, s.dependency("get crop", owner, err)
	}
	return crop, nil
}

// Update replaces the editable fields of one of the owner's crops.
func (s *CropService) Update(ctx context.Context, owner, id string, in models.CropInput) error {
	if owner == "" {
		return common.ErrUnauthenticated
	}
	if !validID(id) {
		return common.ErrNotFound
	}
	if err := s.repo.Update(ctx, owner, id, normalize(in), s.now().UTC()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return s.dependency("update crop", owner, err)
	}
	return nil
}

// Delete removes one of the owner's crops.
func (s *CropService) Delete(ctx context.Context, owner, id string) error {
	if owner == "" {
		return common.ErrUnauthenticated
	}
	if !validID(id) {
		return common.ErrNotFound
	}
	if err := s.repo.Delete(ctx, owner, id, s.now().UTC()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return s.dependency("delete crop", owner, err)
	}
	return nil
}

// Stats aggregates the owner's crops for the dashboard.
func (s *CropService) Stats(ctx context.Context, owner string) (models.DashboardStats, error) {
	if owner == "" {
		return models.DashboardStats{}, common.ErrUnauthenticated
	}
	stats, err := s.repo.Stats(ctx, owner)
	if err != nil {
		return models.DashboardStats{}, s.dependency("crop stats", owner, err)
	}
	stats.Username = owner
	return stats, nil
}

func (s *CropService) dependency(op, owner string, err error) error {
	s.log.Error("crop storage failure", zap.String("op", op), zap.String("username", owner), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", common.ErrDependency, op, err)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalize(in models.CropInput) models.CropInput {
	in.CropName = strings.TrimSpace(in.CropName)
	in.CropType = strings.TrimSpace(in.CropType)
	in.PlantingDate = strings.TrimSpace(in.PlantingDate)
	in.ExpectedHarvest = strings.TrimSpace(in.ExpectedHarvest)
	in.Area = strings.TrimSpace(in.Area)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}
