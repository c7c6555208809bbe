package tracking

import (
	"log"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/snake-soft/pg-search/pkg/messaging"
	"github.com/snake-soft/pg-search/pkg/types"
)

// Tracker receives search events. The webserver calls it fire and forget,
// a failing tracker must never fail a search.
type Tracker interface {
	TrackSearch(v *types.Viewer, query string, results int, page int, r *http.Request)
}

const searchTopic messaging.ChangeTopic = "search_events"

// RabbitTracking publishes search events to the shared tracking exchange.
type RabbitTracking struct {
	prefix     string
	connection *amqp.Connection
}

func NewRabbitTracking(url, prefix string) (*RabbitTracking, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := messaging.DefineTopic(ch, prefix, searchTopic); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitTracking{prefix: prefix, connection: conn}, nil
}

func (t *RabbitTracking) Close() error {
	return t.connection.Close()
}

// SearchEvent is the published payload for one executed search.
type SearchEvent struct {
	UserId    uint   `json:"user_id,omitempty"`
	PartnerId uint   `json:"partner_id,omitempty"`
	Query     string `json:"query"`
	Results   int    `json:"results"`
	Page      int    `json:"page"`
	Referer   string `json:"referer,omitempty"`
	Ip        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func clientIp(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip == "" {
		ip = r.Header.Get("X-Forwarded-For")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

func (t *RabbitTracking) TrackSearch(v *types.Viewer, query string, results int, page int, r *http.Request) {
	event := SearchEvent{
		Query:     query,
		Results:   results,
		Page:      page,
		Referer:   r.Header.Get("Referer"),
		Ip:        clientIp(r),
		UserAgent: r.UserAgent(),
	}
	if v != nil {
		event.UserId = v.Id
		if v.Partner != nil {
			event.PartnerId = v.Partner.Id
		}
	}
	if err := messaging.SendChange(t.connection, t.prefix, searchTopic, event); err != nil {
		log.Printf("tracking: failed to send search event: %v", err)
	}
}
