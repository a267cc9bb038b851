package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// BookingEvent is published on every booking mutation for downstream
// consumers (billing, the rule engine).
type BookingEvent struct {
	Type       string    `json:"type"` // booked, cancelled, updated, cleared
	BookingID  int       `json:"booking_id,omitempty"`
	VehicleID  string    `json:"vehicle_id,omitempty"`
	LotID      int       `json:"parking_id,omitempty"`
	SpotNumber int       `json:"spot_number,omitempty"`
	At         time.Time `json:"at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// PublishBookingEvent is best-effort: callers ignore the error beyond
// logging, a lost event never fails a booking.
func (k *KafkaProducer) PublishBookingEvent(ev BookingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, _ := json.Marshal(ev)
	key := []byte(strconv.Itoa(ev.LotID) + ":" + strconv.Itoa(ev.SpotNumber))
	return k.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
