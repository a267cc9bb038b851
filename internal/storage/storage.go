package storage

import (
	"context"
	"errors"

	"github.com/example/parking-api/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyBooked is the mapped uniqueness violation. The database
	// constraint is the authoritative guard; the application pre-check can
	// be raced past by a concurrent insert.
	ErrAlreadyBooked = errors.New("spot already booked")
)

// LotStore is the lots-shard adapter: lot geometry and spot occupancy.
type LotStore interface {
	GetLot(ctx context.Context, id int) (*models.ParkingLot, error)
	GetLocation(ctx context.Context, id int) (lat, lon float64, err error)
	ListLots(ctx context.Context) ([]models.ParkingLot, error)
	GetSpot(ctx context.Context, lotID, spotNumber int) (*models.ParkingSpot, error)
	// ListAvailableSpots returns available spots, scoped to one lot when
	// lotID > 0.
	ListAvailableSpots(ctx context.Context, lotID int) ([]models.ParkingSpot, error)
	// SetSpotStatus returns the number of rows changed. Zero rows is legal:
	// bookings may reference spot numbers with no spot row.
	SetSpotStatus(ctx context.Context, lotID, spotNumber int, status models.SpotStatus) (int64, error)
	ResetAllSpots(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// BookingStore is the bookings-shard adapter.
type BookingStore interface {
	IsSpotBooked(ctx context.Context, lotID, spotNumber int) (bool, error)
	// Insert creates an active booking and returns its id, or
	// ErrAlreadyBooked when the partial unique index rejects it.
	Insert(ctx context.Context, vehicleID string, lotID, spotNumber int) (int, error)
	Get(ctx context.Context, id int) (*models.Booking, error)
	// Update reassigns vehicle id and active flag; ErrNotFound when no row
	// matches, ErrAlreadyBooked when re-activation collides with another
	// active booking on the same spot.
	Update(ctx context.Context, id int, vehicleID string, active bool) error
	// Deactivate flips active to false; reports whether a row changed.
	Deactivate(ctx context.Context, id int) (bool, error)
	// ListActive returns active bookings, scoped to one lot when lotID > 0.
	ListActive(ctx context.Context, lotID int) ([]models.Booking, error)
	// DeleteAll hard-deletes every booking row, active or not.
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
