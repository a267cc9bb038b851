package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/example/parking-api/internal/models"
)

// uniqueViolation is the SQLSTATE the bookings shard raises when the
// partial unique index on active (parking_id, spot_number) rows rejects a
// write.
const uniqueViolation = "23505"

type PostgresLotStore struct {
	db *sql.DB
}

func NewPostgresLotStore(db *sql.DB) *PostgresLotStore {
	return &PostgresLotStore{db: db}
}

func (p *PostgresLotStore) GetLot(ctx context.Context, id int) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	err := p.db.QueryRowContext(ctx,
		`SELECT id, lat, lon, capacity, hourly_rate FROM parking_lots WHERE id = $1`, id).
		Scan(&lot.ID, &lot.Lat, &lot.Lon, &lot.Capacity, &lot.HourlyRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (p *PostgresLotStore) GetLocation(ctx context.Context, id int) (float64, float64, error) {
	var lat, lon float64
	err := p.db.QueryRowContext(ctx, `SELECT lat, lon FROM parking_lots WHERE id = $1`, id).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func (p *PostgresLotStore) ListLots(ctx context.Context) ([]models.ParkingLot, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, lat, lon, capacity, hourly_rate FROM parking_lots ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []models.ParkingLot
	for rows.Next() {
		var lot models.ParkingLot
		if err := rows.Scan(&lot.ID, &lot.Lat, &lot.Lon, &lot.Capacity, &lot.HourlyRate); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (p *PostgresLotStore) GetSpot(ctx context.Context, lotID, spotNumber int) (*models.ParkingSpot, error) {
	var s models.ParkingSpot
	err := p.db.QueryRowContext(ctx,
		`SELECT id, parking_lot_id, spot_number, status FROM parking_spots WHERE parking_lot_id = $1 AND spot_number = $2`,
		lotID, spotNumber).
		Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresLotStore) ListAvailableSpots(ctx context.Context, lotID int) ([]models.ParkingSpot, error) {
	q := `SELECT id, parking_lot_id, spot_number, status FROM parking_spots WHERE status = 'available'`
	args := []any{}
	if lotID > 0 {
		q += ` AND parking_lot_id = $1`
		args = append(args, lotID)
	}
	q += ` ORDER BY parking_lot_id, spot_number`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spots []models.ParkingSpot
	for rows.Next() {
		var s models.ParkingSpot
		if err := rows.Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.Status); err != nil {
			return nil, err
		}
		spots = append(spots, s)
	}
	return spots, rows.Err()
}

func (p *PostgresLotStore) SetSpotStatus(ctx context.Context, lotID, spotNumber int, status models.SpotStatus) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE parking_spots SET status = $1 WHERE parking_lot_id = $2 AND spot_number = $3`,
		status, lotID, spotNumber)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresLotStore) ResetAllSpots(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE parking_spots SET status = 'available' WHERE status <> 'available'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresLotStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

type PostgresBookingStore struct {
	db *sql.DB
}

func NewPostgresBookingStore(db *sql.DB) *PostgresBookingStore {
	return &PostgresBookingStore{db: db}
}

func (p *PostgresBookingStore) IsSpotBooked(ctx context.Context, lotID, spotNumber int) (bool, error) {
	var booked bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE parking_id = $1 AND spot_number = $2 AND active = true)`,
		lotID, spotNumber).Scan(&booked)
	return booked, err
}

func (p *PostgresBookingStore) Insert(ctx context.Context, vehicleID string, lotID, spotNumber int) (int, error) {
	var id int
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO bookings (vehicle_id, parking_id, spot_number, active) VALUES ($1, $2, $3, true) RETURNING id`,
		vehicleID, lotID, spotNumber).Scan(&id)
	if err != nil {
		return 0, mapUnique(err)
	}
	return id, nil
}

func (p *PostgresBookingStore) Get(ctx context.Context, id int) (*models.Booking, error) {
	var b models.Booking
	err := p.db.QueryRowContext(ctx,
		`SELECT id, vehicle_id, parking_id, spot_number, active, created_at FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &b.VehicleID, &b.LotID, &b.SpotNumber, &b.Active, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresBookingStore) Update(ctx context.Context, id int, vehicleID string, active bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bookings SET vehicle_id = $1, active = $2 WHERE id = $3`, vehicleID, active, id)
	if err != nil {
		return mapUnique(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBookingStore) Deactivate(ctx context.Context, id int) (bool, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE bookings SET active = false WHERE id = $1 AND active = true`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *PostgresBookingStore) ListActive(ctx context.Context, lotID int) ([]models.Booking, error) {
	q := `SELECT id, vehicle_id, parking_id, spot_number, active, created_at FROM bookings WHERE active = true`
	args := []any{}
	if lotID > 0 {
		q += ` AND parking_id = $1`
		args = append(args, lotID)
	}
	q += ` ORDER BY id`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.VehicleID, &b.LotID, &b.SpotNumber, &b.Active, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresBookingStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM bookings`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresBookingStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func mapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return ErrAlreadyBooked
	}
	return err
}
