package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	Addrs []string `yaml:"addrs" envconfig:"KAFKA_ADDRS"`
}

const BookingTopic = "booking-events"

const (
	EventBookingCreated       = "created"
	EventBookingStatusChanged = "status_changed"
)

// EventBooking is the lifecycle event published for every booking mutation.
type EventBooking struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"eventType"`
	BookingID     string    `json:"bookingId"`
	VehicleID     string    `json:"vehicleId"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalAmount   float64   `json:"totalAmount"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}
