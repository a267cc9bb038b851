package models

import "time"

// ParkingStatus is the merged telemetry + geometry view returned by the
// status endpoint. FreeSpots comes from the latest occupancy reading for
// the lot's device; lat/lon come from the relational store.
type ParkingStatus struct {
	ID        int     `json:"id"`
	FreeSpots int     `json:"freeSpots"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// ParkingLot is the durable lot record on the lots shard.
type ParkingLot struct {
	ID         int     `json:"id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Capacity   int     `json:"capacity"`
	HourlyRate float64 `json:"hourly_rate"`
}

type SpotStatus string

const (
	SpotAvailable SpotStatus = "available"
	SpotOccupied  SpotStatus = "occupied"
)

// ParkingSpot belongs to exactly one lot; the number is unique within the
// lot. Status is mutated only as a side effect of booking operations.
type ParkingSpot struct {
	ID         int        `json:"id"`
	LotID      int        `json:"parking_lot_id"`
	SpotNumber int        `json:"spot_number"`
	Status     SpotStatus `json:"status"`
}

// Booking is a vehicle's claim on one (lot, spot) pair. At most one row
// with Active=true may exist per pair; the bookings shard enforces this
// with a partial unique index.
type Booking struct {
	ID         int       `json:"booking_id"`
	VehicleID  string    `json:"vehicle_id"`
	LotID      int       `json:"parking_id"`
	SpotNumber int       `json:"spot_number"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// BookingRequest is the POST /parking/{lotId}/book body. Field names match
// the wire format the vehicle clients send.
type BookingRequest struct {
	VehicleID  string `json:"vehicleid"`
	SpotNumber int    `json:"spotnumber"`
}

// BookingUpdateRequest is the PUT /parking/booking/{id} body.
type BookingUpdateRequest struct {
	VehicleID string `json:"vehicleid"`
	Active    bool   `json:"active"`
}

// BookAllRequest is the POST /parking/bookall body.
type BookAllRequest struct {
	VehicleID        string `json:"vehicleid"`
	ConfirmationCode string `json:"confirmationcode"`
}

// BookingDetail is an active booking enriched with its lot's coordinates,
// as returned by GET /parking/bookings.
type BookingDetail struct {
	Booking
	LotLat float64 `json:"lot_lat"`
	LotLon float64 `json:"lot_lon"`
}
