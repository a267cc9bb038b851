package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Shard names. Lot/spot geometry and bookings live in independently
// addressed databases; there are no cross-shard transactions or foreign
// keys, the booking coordinator stitches the two together.
const (
	ShardLots     = "lots"
	ShardBookings = "bookings"
)

// Shards is the routing table from logical shard name to connection
// handle. Handles are safe for concurrent use.
type Shards struct {
	conns map[string]*sql.DB
}

// OpenShards connects both shards and verifies each with a ping.
func OpenShards(lotsDSN, bookingsDSN string) (*Shards, error) {
	s := &Shards{conns: make(map[string]*sql.DB)}
	for name, dsn := range map[string]string{ShardLots: lotsDSN, ShardBookings: bookingsDSN} {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open shard %s: %w", name, err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			s.Close()
			return nil, fmt.Errorf("ping shard %s: %w", name, err)
		}
		s.conns[name] = db
	}
	return s, nil
}

func (s *Shards) Lots() *sql.DB     { return s.conns[ShardLots] }
func (s *Shards) Bookings() *sql.DB { return s.conns[ShardBookings] }

func (s *Shards) Get(name string) (*sql.DB, bool) {
	db, ok := s.conns[name]
	return db, ok
}

func (s *Shards) Close() {
	for _, db := range s.conns {
		_ = db.Close()
	}
}
