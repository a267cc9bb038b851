package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/parking-api/internal/cache"
	"github.com/example/parking-api/internal/ingest"
	"github.com/example/parking-api/internal/models"
	"github.com/example/parking-api/internal/storage"
)

type recordingSink struct{ events []ingest.BookingEvent }

func (r *recordingSink) PublishBookingEvent(ev ingest.BookingEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func newTestCoordinator() (*Coordinator, *storage.MemoryLotStore, *storage.MemoryBookingStore, *cache.MemoryCache, *recordingSink) {
	lots := storage.NewMemoryLotStore()
	lots.SeedLot(models.ParkingLot{ID: 1, Lat: 59.9343, Lon: 30.3351, Capacity: 10}, 10)
	lots.SeedLot(models.ParkingLot{ID: 2, Lat: 59.9600, Lon: 30.3200, Capacity: 6}, 6)
	bookings := storage.NewMemoryBookingStore()
	store := cache.NewMemoryCache(time.Minute)
	sink := &recordingSink{}
	c := &Coordinator{
		Bookings: bookings,
		Lots:     lots,
		Cache:    store,
		Events:   sink,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		SpotTTL:  time.Minute,
	}
	return c, lots, bookings, store, sink
}

func TestBookMarksSpotOccupied(t *testing.T) {
	c, lots, _, _, sink := newTestCoordinator()
	ctx := context.Background()

	id, err := c.Book(ctx, "CAR1", 1, 5)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive booking id, got %d", id)
	}

	spot, err := lots.GetSpot(ctx, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if spot.Status != models.SpotOccupied {
		t.Fatalf("spot status = %s, want occupied", spot.Status)
	}
	if len(sink.events) != 1 || sink.events[0].Type != "booked" {
		t.Fatalf("expected one booked event, got %+v", sink.events)
	}
}

func TestBookSameSpotTwiceConflicts(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	if _, err := c.Book(ctx, "CAR1", 1, 5); err != nil {
		t.Fatalf("first book failed: %v", err)
	}
	_, err := c.Book(ctx, "CAR2", 1, 5)
	if !errors.Is(err, storage.ErrAlreadyBooked) {
		t.Fatalf("expected already-booked, got %v", err)
	}
}

func TestBookValidation(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	cases := []struct {
		name    string
		vehicle string
		spot    int
	}{
		{"empty vehicle", "", 5},
		{"blank vehicle", "   ", 5},
		{"zero spot", "CAR1", 0},
		{"negative spot", "CAR1", -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Book(ctx, tc.vehicle, 1, tc.spot); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

// racingStore hides an existing active booking from the pre-check so the
// insert hits the constraint, simulating a concurrent booking winning the
// race between check and insert.
type racingStore struct{ storage.BookingStore }

func (racingStore) IsSpotBooked(ctx context.Context, lotID, spotNumber int) (bool, error) {
	return false, nil
}

func TestConstraintCatchesRace(t *testing.T) {
	c, _, bookings, _, _ := newTestCoordinator()
	ctx := context.Background()

	if _, err := c.Book(ctx, "CAR1", 1, 5); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	c.Bookings = racingStore{bookings}
	_, err := c.Book(ctx, "CAR2", 1, 5)
	if !errors.Is(err, ErrConcurrentConflict) {
		t.Fatalf("expected concurrent conflict, got %v", err)
	}
	if !errors.Is(err, storage.ErrAlreadyBooked) {
		t.Fatal("concurrent conflict must still match ErrAlreadyBooked")
	}
}

func TestCancelIsIdempotentlyReported(t *testing.T) {
	c, lots, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	id, err := c.Book(ctx, "CAR1", 1, 5)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := c.Cancel(ctx, id)
	if err != nil || !ok {
		t.Fatalf("first cancel: ok=%v err=%v", ok, err)
	}
	ok, err = c.Cancel(ctx, id)
	if err != nil || ok {
		t.Fatalf("second cancel should report false, got ok=%v err=%v", ok, err)
	}

	spot, err := lots.GetSpot(ctx, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if spot.Status != models.SpotAvailable {
		t.Fatalf("spot status = %s, want available", spot.Status)
	}
}

func TestCancelUnknownBooking(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ok, err := c.Cancel(context.Background(), 999)
	if err != nil || ok {
		t.Fatalf("expected not-found report, got ok=%v err=%v", ok, err)
	}
}

func TestBookInvalidatesStatusCaches(t *testing.T) {
	c, _, _, store, _ := newTestCoordinator()
	ctx := context.Background()

	_ = store.Set(ctx, cache.KeyStatus, []models.ParkingStatus{{ID: 1, FreeSpots: 9}}, time.Minute)
	_ = store.Set(ctx, cache.StatusGeoKey(59.9343, 30.3351, 100), 1, time.Minute)
	_ = store.Set(ctx, cache.SpotKey(1, 5), 1, time.Minute)
	_ = store.Set(ctx, cache.LotKey(1), 1, time.Minute)

	if _, err := c.Book(ctx, "CAR1", 1, 5); err != nil {
		t.Fatal(err)
	}

	var v any
	if hit, _ := store.Get(ctx, cache.KeyStatus, &v); hit {
		t.Fatal("status key survived booking")
	}
	if hit, _ := store.Get(ctx, cache.StatusGeoKey(59.9343, 30.3351, 100), &v); hit {
		t.Fatal("geo status key survived booking")
	}
	if hit, _ := store.Get(ctx, cache.SpotKey(1, 5), &v); hit {
		t.Fatal("spot key survived booking")
	}
	// lot geometry does not change on booking
	if hit, _ := store.Get(ctx, cache.LotKey(1), &v); !hit {
		t.Fatal("lot geometry key must survive booking")
	}
}

func TestUpdateTransitionSyncsSpot(t *testing.T) {
	c, lots, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	id, err := c.Book(ctx, "CAR1", 1, 5)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := c.Update(ctx, id, "CAR1", false)
	if err != nil || !ok {
		t.Fatalf("deactivate: ok=%v err=%v", ok, err)
	}
	spot, _ := lots.GetSpot(ctx, 1, 5)
	if spot.Status != models.SpotAvailable {
		t.Fatalf("spot status = %s, want available", spot.Status)
	}

	ok, err = c.Update(ctx, id, "CAR9", true)
	if err != nil || !ok {
		t.Fatalf("reactivate: ok=%v err=%v", ok, err)
	}
	spot, _ = lots.GetSpot(ctx, 1, 5)
	if spot.Status != models.SpotOccupied {
		t.Fatalf("spot status = %s, want occupied", spot.Status)
	}
}

func TestUpdateUnknownBooking(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ok, err := c.Update(context.Background(), 999, "CAR1", true)
	if err != nil || ok {
		t.Fatalf("expected not-found report, got ok=%v err=%v", ok, err)
	}
}

func TestReactivationBlockedByActiveBooking(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	first, err := c.Book(ctx, "CAR1", 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Cancel(ctx, first); err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	if _, err := c.Book(ctx, "CAR2", 1, 5); err != nil {
		t.Fatal(err)
	}

	// the stale booking cannot re-occupy a spot another active booking
	// holds; the store constraint rejects it
	_, err = c.Update(ctx, first, "CAR1", true)
	if !errors.Is(err, storage.ErrAlreadyBooked) {
		t.Fatalf("expected already-booked, got %v", err)
	}
}

func TestBookAllBooksEveryAvailableSpot(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	booked, err := c.BookAll(ctx, "FLEET1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if booked != 6 {
		t.Fatalf("bookedCount = %d, want 6", booked)
	}

	// a second pass finds nothing available
	booked, err = c.BookAll(ctx, "FLEET1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if booked != 0 {
		t.Fatalf("bookedCount = %d, want 0", booked)
	}
}

func TestBookAllContinuesPastConflicts(t *testing.T) {
	c, _, bookings, _, _ := newTestCoordinator()
	ctx := context.Background()

	// another instance books one spot directly on the shard, so the spot
	// still looks available in the enumeration but conflicts at insert
	if _, err := bookings.Insert(ctx, "CAR1", 2, 3); err != nil {
		t.Fatal(err)
	}

	booked, err := c.BookAll(ctx, "FLEET1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if booked != 5 {
		t.Fatalf("bookedCount = %d, want 5", booked)
	}
}

func TestClearAllDeletesEverythingAndResetsSpots(t *testing.T) {
	c, lots, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	if _, err := c.Book(ctx, "CAR1", 1, 5); err != nil {
		t.Fatal(err)
	}
	id, err := c.Book(ctx, "CAR2", 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Cancel(ctx, id); err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}

	// inactive rows are deleted too
	deleted, err := c.ClearAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("deletedCount = %d, want 2", deleted)
	}

	spots, err := lots.ListAvailableSpots(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(spots) != 10 {
		t.Fatalf("available spots after clear = %d, want 10", len(spots))
	}
}

func TestBookingUnknownSpotNumberStillSucceeds(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	// lot 1 has spots 1..10; 99 has no spot row, but the booking commits
	id, err := c.Book(ctx, "CAR1", 1, 99)
	if err != nil {
		t.Fatalf("booking without a spot row must succeed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}
}

func TestSpotDetailNotFoundIsNotCached(t *testing.T) {
	c, _, _, store, _ := newTestCoordinator()
	ctx := context.Background()

	if _, err := c.SpotDetail(ctx, 1, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("negative lookup must not be cached, have %d entries", store.Len())
	}

	spot, err := c.SpotDetail(ctx, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if spot.SpotNumber != 5 || store.Len() != 1 {
		t.Fatalf("expected cached spot detail, spot=%+v entries=%d", spot, store.Len())
	}
}
