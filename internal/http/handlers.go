package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/parking-api/internal/booking"
	"github.com/example/parking-api/internal/models"
	"github.com/example/parking-api/internal/status"
	"github.com/example/parking-api/internal/storage"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	filter, err := geoFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.Aggregator.GetStatus(r.Context(), filter)
	if err != nil {
		s.logger.Error("status query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "error querying parking status")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// geoFilterFromQuery requires lat, lon and radius together; a partial set
// is rejected rather than silently ignored.
func geoFilterFromQuery(r *http.Request) (*status.GeoFilter, error) {
	q := r.URL.Query()
	rawLat, rawLon, rawRadius := q.Get("lat"), q.Get("lon"), q.Get("radius")
	if rawLat == "" && rawLon == "" && rawRadius == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" || rawRadius == "" {
		return nil, errors.New("lat, lon and radius must be supplied together")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil, errors.New("invalid lon")
	}
	radius, err := strconv.ParseFloat(rawRadius, 64)
	if err != nil || radius < 0 {
		return nil, errors.New("invalid radius")
	}
	return &status.GeoFilter{Lat: lat, Lon: lon, Radius: radius}, nil
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	lotID, _ := strconv.Atoi(mux.Vars(r)["lotId"])

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.Coordinator.Book(r.Context(), req.VehicleID, lotID, req.SpotNumber)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"booking_id": id, "status": "success"})
	case errors.Is(err, booking.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrConcurrentConflict):
		writeError(w, http.StatusConflict, "spot already booked")
	case errors.Is(err, storage.ErrAlreadyBooked):
		writeError(w, http.StatusBadRequest, "spot already booked")
	default:
		s.logger.Error("booking failed", "parking_id", lotID, "error", err)
		writeError(w, http.StatusInternalServerError, "error booking spot")
	}
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	lotID, _ := strconv.Atoi(mux.Vars(r)["lotId"])

	info, err := s.Aggregator.Route(r.Context(), lotID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, info)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "parking lot not found")
	default:
		s.logger.Error("route lookup failed", "parking_id", lotID, "error", err)
		writeError(w, http.StatusInternalServerError, "error getting route")
	}
}

func (s *Server) handleSpotDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lotID, _ := strconv.Atoi(vars["lotId"])
	spotNumber, _ := strconv.Atoi(vars["spotNumber"])

	spot, err := s.Coordinator.SpotDetail(r.Context(), lotID, spotNumber)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, spot)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "spot not found")
	default:
		s.logger.Error("spot lookup failed", "parking_id", lotID, "spot_number", spotNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "error getting spot")
	}
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, _ := strconv.Atoi(mux.Vars(r)["bookingId"])

	ok, err := s.Coordinator.Cancel(r.Context(), bookingID)
	if err != nil {
		s.logger.Error("cancel failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "error deleting booking")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, _ := strconv.Atoi(mux.Vars(r)["bookingId"])

	var req models.BookingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := s.Coordinator.Update(r.Context(), bookingID, req.VehicleID, req.Active)
	switch {
	case err == nil && ok:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case err == nil:
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, booking.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "spot already booked by another vehicle")
	default:
		s.logger.Error("update failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "error updating booking")
	}
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	lotID := 0
	if raw := r.URL.Query().Get("parkingId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid parkingId")
			return
		}
		lotID = id
	}

	bookings, err := s.Bookings.ListActive(r.Context(), lotID)
	if err != nil {
		s.logger.Error("booking list failed", "parking_id", lotID, "error", err)
		writeError(w, http.StatusInternalServerError, "error listing bookings")
		return
	}

	out := make([]models.BookingDetail, 0, len(bookings))
	for _, b := range bookings {
		detail := models.BookingDetail{Booking: b}
		if lat, lon, err := s.Lots.GetLocation(r.Context(), b.LotID); err == nil {
			detail.LotLat, detail.LotLon = lat, lon
		} else {
			s.logger.Warn("no lot location for booking", "booking_id", b.ID, "parking_id", b.LotID)
		}
		out = append(out, detail)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirmationCode") != s.ConfirmationCode {
		writeError(w, http.StatusBadRequest, "invalid confirmation code")
		return
	}

	deleted, err := s.Coordinator.ClearAll(r.Context())
	if err != nil {
		s.logger.Error("bulk delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "error deleting bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deletedCount": deleted})
}

func (s *Server) handleBookAll(w http.ResponseWriter, r *http.Request) {
	var req models.BookAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConfirmationCode != s.ConfirmationCode {
		writeError(w, http.StatusBadRequest, "invalid confirmation code")
		return
	}

	lotID := 0
	if raw := r.URL.Query().Get("parkingId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid parkingId")
			return
		}
		lotID = id
	}

	booked, err := s.Coordinator.BookAll(r.Context(), req.VehicleID, lotID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]int{"bookedCount": booked})
	case errors.Is(err, booking.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("bulk booking failed", "parking_id", lotID, "error", err)
		writeError(w, http.StatusInternalServerError, "error booking spots")
	}
}

func (s *Server) handlePayBooking(w http.ResponseWriter, r *http.Request) {
	if s.Payments == nil {
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	bookingID, _ := strconv.Atoi(mux.Vars(r)["bookingId"])

	var req struct {
		Hours int `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hours <= 0 {
		writeError(w, http.StatusBadRequest, "hours must be a positive integer")
		return
	}

	b, err := s.Bookings.Get(r.Context(), bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		s.logger.Error("booking lookup failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "error loading booking")
		return
	}

	lot, err := s.Lots.GetLot(r.Context(), b.LotID)
	if err != nil {
		s.logger.Error("lot lookup failed for payment", "booking_id", bookingID, "parking_id", b.LotID, "error", err)
		writeError(w, http.StatusInternalServerError, "error loading lot")
		return
	}

	intentID, err := s.Payments.HoldCharge(r.Context(), lot.HourlyRate, req.Hours, "usd")
	if err != nil {
		s.logger.Error("payment hold failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusBadGateway, "payment hold failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_intent_id": intentID, "status": "held"})
}
