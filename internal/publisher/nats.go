package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"valley-transit/internal/transit"
)

// NATSPublisher forwards each simulation snapshot to NATS, one message
// per vehicle on "<prefix>.<route>.<id>". It plugs into the clock as
// an observer.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logSubjects   bool
	metrics       PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("valley-transit"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	if subjectPrefix == "" {
		subjectPrefix = "vehicles"
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectToken(subjectPrefix), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// VehicleMessage is the wire form of one vehicle position.
type VehicleMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"type"`
	Route     string    `json:"route"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading"`
	Status    string    `json:"status"`
	NextStop  string    `json:"nextStop"`
	Color     string    `json:"color"`
}

// VehiclesUpdated implements the clock observer: every snapshot fans
// out as one message per vehicle. Publish errors are counted and
// logged but never interrupt the simulation.
func (p *NATSPublisher) VehiclesUpdated(vehicles []transit.Vehicle) {
	now := time.Now()
	for _, v := range vehicles {
		msg := VehicleMessage{
			ID:        v.ID,
			Kind:      string(v.Kind),
			Route:     v.Route,
			Timestamp: now,
			Lat:       v.Position.Lat,
			Lng:       v.Position.Lng,
			Heading:   v.Heading,
			Status:    string(v.Status),
			NextStop:  v.NextStop,
			Color:     v.Color,
		}
		if err := p.publish(msg); err != nil {
			log.Printf("publish error for %s: %v", v.ID, err)
		}
	}
}

func (p *NATSPublisher) publish(msg VehicleMessage) error {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, subjectToken(msg.Route), subjectToken(msg.ID))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
