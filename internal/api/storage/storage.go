package storage

import (
	"context"
	"strconv"
	"sync"

	"bandwidth-guard/internal/model"

	"github.com/sirupsen/logrus"
)

const DefaultMaxEntries = 300

// Event types sent to subscribers
const (
	EventMeasurement = "measurement"
	EventAlert       = "alert"
)

// Storage keeps the most recent measurements and alerts in memory and fans
// them out to live subscribers. It is registered as a sink.
type Storage struct {
	mu         sync.RWMutex
	rates      []model.RateMeasurement
	alerts     []Alert
	maxEntries int
	nextID     uint64
	logger     *logrus.Logger
	subs       map[*Subscriber]bool
	subsMu     sync.RWMutex
}

type Alert struct {
	ID string `json:"id"`
	model.AlertEvent
}

// Event is the envelope written to stream clients
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Subscriber struct {
	ID      string
	Channel chan Event
	Filter  EventFilter
}

// EventFilter narrows a subscription; empty fields match everything.
// Direction only narrows alerts: a measurement carries both directions.
type EventFilter struct {
	Type      string
	Direction model.Direction
}

func (f EventFilter) matches(ev Event) bool {
	if f.Type != "" && f.Type != ev.Type {
		return false
	}
	if a, ok := ev.Data.(Alert); ok && f.Direction != "" && a.Direction != f.Direction {
		return false
	}
	return true
}

func NewStorage(maxEntries int, logger *logrus.Logger) *Storage {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Storage{
		rates:      make([]model.RateMeasurement, 0),
		alerts:     make([]Alert, 0),
		maxEntries: maxEntries,
		logger:     logger,
		subs:       make(map[*Subscriber]bool),
	}
}

func (s *Storage) Name() string {
	return "api"
}

func (s *Storage) OnMeasurement(_ context.Context, rate model.RateMeasurement) error {
	s.AddRate(rate)
	return nil
}

func (s *Storage) OnAlert(_ context.Context, event model.AlertEvent) error {
	s.AddAlert(event)
	return nil
}

// Close ends every live subscription
func (s *Storage) Close(context.Context) error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.Channel)
	}
	return nil
}

// Rate methods
func (s *Storage) AddRate(rate model.RateMeasurement) {
	s.mu.Lock()
	s.rates = append(s.rates, rate)
	if len(s.rates) > s.maxEntries {
		s.rates = s.rates[len(s.rates)-s.maxEntries:]
	}
	s.mu.Unlock()

	s.notify(Event{Type: EventMeasurement, Data: rate})
}

// LatestRate returns the newest measurement, if any
func (s *Storage) LatestRate() (model.RateMeasurement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rates) == 0 {
		return model.RateMeasurement{}, false
	}
	return s.rates[len(s.rates)-1], true
}

// GetRates returns up to limit measurements, latest first
func (s *Storage) GetRates(limit int) []model.RateMeasurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.RateMeasurement, 0, min(limit, len(s.rates)))
	for i := len(s.rates) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.rates[i])
	}
	return result
}

// Alert methods
func (s *Storage) AddAlert(event model.AlertEvent) Alert {
	s.mu.Lock()
	s.nextID++
	alert := Alert{
		ID:         strconv.FormatUint(s.nextID, 10),
		AlertEvent: event,
	}
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxEntries {
		s.alerts = s.alerts[len(s.alerts)-s.maxEntries:]
	}
	s.mu.Unlock()

	s.notify(Event{Type: EventAlert, Data: alert})
	return alert
}

// GetAlerts returns up to limit alerts, latest first, optionally for one
// direction only
func (s *Storage) GetAlerts(limit int, direction model.Direction) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Alert, 0)
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		alert := s.alerts[i]
		if direction != "" && alert.Direction != direction {
			continue
		}
		result = append(result, alert)
	}
	return result
}

// Subscriber methods
func (s *Storage) Subscribe(sub *Subscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[sub] = true
}

func (s *Storage) Unsubscribe(sub *Subscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if !s.subs[sub] {
		return
	}
	delete(s.subs, sub)
	close(sub.Channel)
}

func (s *Storage) SubscriberCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}

func (s *Storage) notify(ev Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs {
		if !sub.Filter.matches(ev) {
			continue
		}
		select {
		case sub.Channel <- ev:
		default:
			// Channel full, skip
			s.logger.Debugf("Dropping %s event for slow subscriber %s", ev.Type, sub.ID)
		}
	}
}
