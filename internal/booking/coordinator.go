package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parking-api/internal/cache"
	"github.com/example/parking-api/internal/ingest"
	"github.com/example/parking-api/internal/models"
	"github.com/example/parking-api/internal/observability"
	"github.com/example/parking-api/internal/storage"
)

// ErrInvalidArgument rejects malformed input before any mutation.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrConcurrentConflict reports a booking that passed the application
// pre-check but was rejected by the shard's unique constraint: a
// concurrent insert won the race. It matches storage.ErrAlreadyBooked
// under errors.Is.
var ErrConcurrentConflict = fmt.Errorf("%w: lost race to concurrent booking", storage.ErrAlreadyBooked)

// EventSink receives best-effort booking events. Nil disables publishing.
type EventSink interface {
	PublishBookingEvent(ev ingest.BookingEvent) error
}

// Coordinator enforces the one-active-booking-per-spot invariant and
// drives cache invalidation on every mutation. The pre-check is advisory;
// the bookings shard's unique constraint is the authoritative guard, which
// keeps the invariant correct across multiple server instances without
// any in-process locking.
type Coordinator struct {
	Bookings storage.BookingStore
	Lots     storage.LotStore
	Cache    cache.Cache
	Events   EventSink
	Logger   *slog.Logger
	SpotTTL  time.Duration
}

// IsBooked reports whether an active booking exists for the pair. Pure
// read, no side effects.
func (c *Coordinator) IsBooked(ctx context.Context, lotID, spotNumber int) (bool, error) {
	return c.Bookings.IsSpotBooked(ctx, lotID, spotNumber)
}

// Book creates an active booking for (lotID, spotNumber) and returns its
// id. A spot number with no matching spot row is not rejected: the booking
// still commits and the status sync logs the zero-row update.
func (c *Coordinator) Book(ctx context.Context, vehicleID string, lotID, spotNumber int) (int, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return 0, fmt.Errorf("%w: vehicle id must not be empty", ErrInvalidArgument)
	}
	if spotNumber <= 0 {
		return 0, fmt.Errorf("%w: spot number must be positive", ErrInvalidArgument)
	}

	booked, err := c.Bookings.IsSpotBooked(ctx, lotID, spotNumber)
	if err != nil {
		return 0, fmt.Errorf("booking pre-check: %w", err)
	}
	if booked {
		observability.BookingConflicts.Inc()
		return 0, storage.ErrAlreadyBooked
	}

	id, err := c.Bookings.Insert(ctx, vehicleID, lotID, spotNumber)
	if errors.Is(err, storage.ErrAlreadyBooked) {
		// A concurrent insert raced past the pre-check; the constraint
		// caught it.
		observability.BookingConflicts.Inc()
		return 0, ErrConcurrentConflict
	}
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}

	c.syncSpot(ctx, lotID, spotNumber, models.SpotOccupied)
	c.invalidate(ctx, lotID, spotNumber)
	c.publish(ingest.BookingEvent{Type: "booked", BookingID: id, VehicleID: vehicleID, LotID: lotID, SpotNumber: spotNumber})
	observability.BookingsTotal.Inc()
	return id, nil
}

// Cancel deactivates a booking. It returns false when the booking does not
// exist or is already inactive, so a second Cancel on the same id is a
// reported no-op.
func (c *Coordinator) Cancel(ctx context.Context, bookingID int) (bool, error) {
	b, err := c.Bookings.Get(ctx, bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	changed, err := c.Bookings.Deactivate(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("deactivate booking %d: %w", bookingID, err)
	}
	if !changed {
		return false, nil
	}

	c.syncSpot(ctx, b.LotID, b.SpotNumber, models.SpotAvailable)
	c.invalidate(ctx, b.LotID, b.SpotNumber)
	c.publish(ingest.BookingEvent{Type: "cancelled", BookingID: bookingID, VehicleID: b.VehicleID, LotID: b.LotID, SpotNumber: b.SpotNumber})
	observability.CancellationsTotal.Inc()
	return true, nil
}

// Update reassigns the vehicle id and active flag. Re-activating a
// cancelled booking does not re-run the availability pre-check; only the
// shard's constraint can reject it, surfaced as ErrAlreadyBooked.
func (c *Coordinator) Update(ctx context.Context, bookingID int, vehicleID string, active bool) (bool, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return false, fmt.Errorf("%w: vehicle id must not be empty", ErrInvalidArgument)
	}

	prior, err := c.Bookings.Get(ctx, bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	if err := c.Bookings.Update(ctx, bookingID, vehicleID, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if prior.Active != active {
		status := models.SpotAvailable
		if active {
			status = models.SpotOccupied
		}
		c.syncSpot(ctx, prior.LotID, prior.SpotNumber, status)
		c.invalidate(ctx, prior.LotID, prior.SpotNumber)
	}
	c.publish(ingest.BookingEvent{Type: "updated", BookingID: bookingID, VehicleID: vehicleID, LotID: prior.LotID, SpotNumber: prior.SpotNumber})
	return true, nil
}

// BookAll books every currently-available spot, optionally scoped to one
// lot (lotID > 0). Individual failures are logged and skipped; the caller
// sees them only as a booked count below the candidate count.
func (c *Coordinator) BookAll(ctx context.Context, vehicleID string, lotID int) (int, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return 0, fmt.Errorf("%w: vehicle id must not be empty", ErrInvalidArgument)
	}

	spots, err := c.Lots.ListAvailableSpots(ctx, lotID)
	if err != nil {
		return 0, fmt.Errorf("list available spots: %w", err)
	}

	booked := 0
	for _, s := range spots {
		if _, err := c.Book(ctx, vehicleID, s.LotID, s.SpotNumber); err != nil {
			c.Logger.Warn("bulk booking skipped spot",
				"parking_id", s.LotID, "spot_number", s.SpotNumber, "error", err)
			continue
		}
		booked++
	}
	return booked, nil
}

// ClearAll hard-deletes every booking row and resets all spots to
// available. The confirmation token is checked by the caller.
func (c *Coordinator) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := c.Bookings.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete bookings: %w", err)
	}
	if _, err := c.Lots.ResetAllSpots(ctx); err != nil {
		c.Logger.Error("spot reset after bulk delete failed", "error", err)
	}

	c.removeKey(ctx, cache.KeyStatus)
	c.removePrefix(ctx, cache.KeyStatusGeoPrefix)
	c.removePrefix(ctx, cache.KeySpotPrefix)
	c.publish(ingest.BookingEvent{Type: "cleared"})
	return deleted, nil
}

// SpotDetail returns one spot's occupancy state, served through the cache
// with the short spot TTL. Unknown spots are never cached.
func (c *Coordinator) SpotDetail(ctx context.Context, lotID, spotNumber int) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	err := c.Cache.GetOrCreate(ctx, cache.SpotKey(lotID, spotNumber), &spot, c.SpotTTL,
		func(ctx context.Context) (any, error) {
			s, err := c.Lots.GetSpot(ctx, lotID, spotNumber)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, cache.Skip(err)
			}
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	if err != nil {
		return nil, err
	}
	return &spot, nil
}

// syncSpot mirrors the booking state onto the lots shard. Zero rows means
// the booking references a spot number with no spot row; that is logged,
// not treated as an error. A failed sync is also only logged: the booking
// row already committed on the other shard.
func (c *Coordinator) syncSpot(ctx context.Context, lotID, spotNumber int, status models.SpotStatus) {
	rows, err := c.Lots.SetSpotStatus(ctx, lotID, spotNumber, status)
	if err != nil {
		c.Logger.Error("spot status sync failed",
			"parking_id", lotID, "spot_number", spotNumber, "status", status, "error", err)
		return
	}
	if rows == 0 {
		c.Logger.Warn("spot status sync matched no rows",
			"parking_id", lotID, "spot_number", spotNumber, "status", status)
	}
}

// invalidate removes every cache entry a mutation can make stale. The bare
// status key does not share the geo prefix, so it gets its own removal.
func (c *Coordinator) invalidate(ctx context.Context, lotID, spotNumber int) {
	c.removeKey(ctx, cache.KeyStatus)
	c.removePrefix(ctx, cache.KeyStatusGeoPrefix)
	c.removeKey(ctx, cache.SpotKey(lotID, spotNumber))
}

func (c *Coordinator) removeKey(ctx context.Context, key string) {
	if err := c.Cache.Remove(ctx, key); err != nil {
		observability.CacheErrors.Inc()
		c.Logger.Warn("cache invalidation skipped", "key", key, "error", err)
	}
}

func (c *Coordinator) removePrefix(ctx context.Context, prefix string) {
	if err := c.Cache.RemoveByPrefix(ctx, prefix); err != nil {
		observability.CacheErrors.Inc()
		c.Logger.Warn("cache prefix invalidation skipped", "prefix", prefix, "error", err)
	}
}

func (c *Coordinator) publish(ev ingest.BookingEvent) {
	if c.Events == nil {
		return
	}
	if err := c.Events.PublishBookingEvent(ev); err != nil {
		c.Logger.Warn("booking event publish failed", "type", ev.Type, "booking_id", ev.BookingID, "error", err)
	}
}
