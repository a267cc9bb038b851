package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/parking-api/internal/booking"
	"github.com/example/parking-api/internal/payments"
	"github.com/example/parking-api/internal/status"
	"github.com/example/parking-api/internal/storage"
	"github.com/example/parking-api/internal/telemetry"
)

// Server wires the HTTP surface over the aggregator and the coordinator.
// Everything here is thin plumbing; the consistency and caching decisions
// live in the internal packages.
type Server struct {
	Aggregator  *status.Aggregator
	Coordinator *booking.Coordinator
	Bookings    storage.BookingStore
	Lots        storage.LotStore

	// Metrics is the time-series writer for HTTP/health metrics; nil in
	// mock mode.
	Metrics *telemetry.Writer
	// Payments is nil when no payment backend is configured.
	Payments *payments.StripeClient

	ConfirmationCode string

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(agg *status.Aggregator, coord *booking.Coordinator, bookings storage.BookingStore, lots storage.LotStore, logger *slog.Logger) *Server {
	s := &Server{
		Aggregator:  agg,
		Coordinator: coord,
		Bookings:    bookings,
		Lots:        lots,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/parking/status", s.handleStatus).Methods("GET")
	s.mux.HandleFunc("/parking/bookings", s.handleListBookings).Methods("GET")
	s.mux.HandleFunc("/parking/bookings/all", s.handleClearAll).Methods("DELETE")
	s.mux.HandleFunc("/parking/bookall", s.handleBookAll).Methods("POST")
	s.mux.HandleFunc("/parking/booking/{bookingId:[0-9]+}", s.handleCancelBooking).Methods("DELETE")
	s.mux.HandleFunc("/parking/booking/{bookingId:[0-9]+}", s.handleUpdateBooking).Methods("PUT")
	s.mux.HandleFunc("/parking/booking/{bookingId:[0-9]+}/pay", s.handlePayBooking).Methods("POST")
	s.mux.HandleFunc("/parking/{lotId:[0-9]+}/book", s.handleBook).Methods("POST")
	s.mux.HandleFunc("/parking/{lotId:[0-9]+}/route", s.handleRoute).Methods("GET")
	s.mux.HandleFunc("/parking/{lotId:[0-9]+}/spot/{spotNumber:[0-9]+}", s.handleSpotDetail).Methods("GET")
	s.mux.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.mux.HandleFunc("/health/detailed", s.handleHealthDetailed).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps boundary errors to a plain message; internal detail
// stays in the logs.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
