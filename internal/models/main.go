// Package models defines the core data structures for users, crops and
// dashboard statistics.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the login name chosen by the user.
	Username string
	// PasswordHash is the self-describing PBKDF2 hash of the password.
	PasswordHash string
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// Crop is a crop record owned by exactly one user.
type Crop struct {
	// ID is the server-generated identifier. The web client expects it as "_id".
	ID string `json:"_id"`
	// Username is the owner. It is always taken from the authenticated
	// identity, never from a request body.
	Username        string     `json:"username"`
	CropName        string     `json:"crop_name"`
	CropType        string     `json:"crop_type"`
	PlantingDate    string     `json:"planting_date"`
	ExpectedHarvest string     `json:"expected_harvest"`
	Area            string     `json:"area"`
	Status          CropStatus `json:"status"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CropInput is the client-controlled part of a crop. It intentionally has
// neither an ID nor an owner.
type CropInput struct {
	CropName        string     `json:"crop_name" validate:"required,max=100"`
	CropType        string     `json:"crop_type" validate:"required,max=100"`
	PlantingDate    string     `json:"planting_date" validate:"required,datetime=2006-01-02"`
	ExpectedHarvest string     `json:"expected_harvest" validate:"omitempty,datetime=2006-01-02"`
	Area            string     `json:"area" validate:"max=50"`
	Status          CropStatus `json:"status" validate:"required,oneof=Active Harvested Planning"`
	Notes           string     `json:"notes" validate:"max=2000"`
}

// CropStatus is the lifecycle stage of a crop.
type CropStatus string

const (
	// StatusActive is a crop currently in the ground.
	StatusActive CropStatus = "Active"
	// StatusHarvested is a crop that has been harvested.
	StatusHarvested CropStatus = "Harvested"
	// StatusPlanning is a crop not planted yet.
	StatusPlanning CropStatus = "Planning"
)

// DashboardStats aggregates a user's crops by status.
type DashboardStats struct {
	TotalCrops     int64  `json:"total_crops"`
	ActiveCrops    int64  `json:"active_crops"`
	HarvestedCrops int64  `json:"harvested_crops"`
	PlanningCrops  int64  `json:"planning_crops"`
	Username       string `json:"username"`
}

// Analysis is the result of a leaf diagnosis.
type Analysis struct {
	Text     string
	ImageURL string
	Cached   bool
}
