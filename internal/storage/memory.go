package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/parking-api/internal/models"
)

// MemoryLotStore backs mock mode and tests. It enforces the same contract
// as the Postgres adapter, including zero-row status updates for spot
// numbers that have no spot row.
type MemoryLotStore struct {
	mu    sync.RWMutex
	lots  map[int]models.ParkingLot
	spots map[spotKey]models.ParkingSpot
}

type spotKey struct {
	lotID      int
	spotNumber int
}

func NewMemoryLotStore() *MemoryLotStore {
	return &MemoryLotStore{
		lots:  make(map[int]models.ParkingLot),
		spots: make(map[spotKey]models.ParkingSpot),
	}
}

// SeedLot inserts a lot and its numbered spots, all available.
func (m *MemoryLotStore) SeedLot(lot models.ParkingLot, spotCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lots[lot.ID] = lot
	for n := 1; n <= spotCount; n++ {
		k := spotKey{lot.ID, n}
		m.spots[k] = models.ParkingSpot{
			ID:         len(m.spots) + 1,
			LotID:      lot.ID,
			SpotNumber: n,
			Status:     models.SpotAvailable,
		}
	}
}

func (m *MemoryLotStore) GetLot(ctx context.Context, id int) (*models.ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lot, ok := m.lots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &lot, nil
}

func (m *MemoryLotStore) GetLocation(ctx context.Context, id int) (float64, float64, error) {
	lot, err := m.GetLot(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return lot.Lat, lot.Lon, nil
}

func (m *MemoryLotStore) ListLots(ctx context.Context) ([]models.ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ParkingLot, 0, len(m.lots))
	for _, lot := range m.lots {
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryLotStore) GetSpot(ctx context.Context, lotID, spotNumber int) (*models.ParkingSpot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spots[spotKey{lotID, spotNumber}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryLotStore) ListAvailableSpots(ctx context.Context, lotID int) ([]models.ParkingSpot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ParkingSpot
	for _, s := range m.spots {
		if s.Status != models.SpotAvailable {
			continue
		}
		if lotID > 0 && s.LotID != lotID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LotID != out[j].LotID {
			return out[i].LotID < out[j].LotID
		}
		return out[i].SpotNumber < out[j].SpotNumber
	})
	return out, nil
}

func (m *MemoryLotStore) SetSpotStatus(ctx context.Context, lotID, spotNumber int, status models.SpotStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := spotKey{lotID, spotNumber}
	s, ok := m.spots[k]
	if !ok {
		return 0, nil
	}
	s.Status = status
	m.spots[k] = s
	return 1, nil
}

func (m *MemoryLotStore) ResetAllSpots(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.spots {
		if s.Status != models.SpotAvailable {
			s.Status = models.SpotAvailable
			m.spots[k] = s
			n++
		}
	}
	return n, nil
}

func (m *MemoryLotStore) Ping(ctx context.Context) error { return nil }

// MemoryBookingStore enforces the one-active-booking-per-spot invariant
// under its own lock, standing in for the shard's partial unique index.
type MemoryBookingStore struct {
	mu       sync.Mutex
	bookings map[int]models.Booking
	nextID   int
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[int]models.Booking), nextID: 1}
}

func (m *MemoryBookingStore) IsSpotBooked(ctx context.Context, lotID, spotNumber int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeExists(lotID, spotNumber, 0), nil
}

func (m *MemoryBookingStore) Insert(ctx context.Context, vehicleID string, lotID, spotNumber int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeExists(lotID, spotNumber, 0) {
		return 0, ErrAlreadyBooked
	}
	id := m.nextID
	m.nextID++
	m.bookings[id] = models.Booking{
		ID:         id,
		VehicleID:  vehicleID,
		LotID:      lotID,
		SpotNumber: spotNumber,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	return id, nil
}

func (m *MemoryBookingStore) Get(ctx context.Context, id int) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryBookingStore) Update(ctx context.Context, id int, vehicleID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if active && !b.Active && m.activeExists(b.LotID, b.SpotNumber, id) {
		return ErrAlreadyBooked
	}
	b.VehicleID = vehicleID
	b.Active = active
	m.bookings[id] = b
	return nil
}

func (m *MemoryBookingStore) Deactivate(ctx context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || !b.Active {
		return false, nil
	}
	b.Active = false
	m.bookings[id] = b
	return true, nil
}

func (m *MemoryBookingStore) ListActive(ctx context.Context, lotID int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if !b.Active {
			continue
		}
		if lotID > 0 && b.LotID != lotID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBookingStore) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.bookings))
	m.bookings = make(map[int]models.Booking)
	return n, nil
}

func (m *MemoryBookingStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryBookingStore) activeExists(lotID, spotNumber, excludeID int) bool {
	for _, b := range m.bookings {
		if b.Active && b.LotID == lotID && b.SpotNumber == spotNumber && b.ID != excludeID {
			return true
		}
	}
	return false
}
