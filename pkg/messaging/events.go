package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventETLRequested = "attendance.etl.requested"
	EventETLCompleted = "attendance.etl.completed"
	EventETLFailed    = "attendance.etl.failed"
)

// ExchangeAttendanceEvents is the default exchange for run events.
const ExchangeAttendanceEvents = "attendance.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ETLRequestedEvent asks a worker to run the pipeline. Empty paths fall
// back to the worker's configured sources.
type ETLRequestedEvent struct {
	PunchFile  string `json:"punch_file,omitempty"`
	ShiftFile  string `json:"shift_file,omitempty"`
	DriverFile string `json:"driver_file,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// EntityOutcome summarizes one entity of a run.
type EntityOutcome struct {
	Read       int    `json:"read"`
	Invalid    int    `json:"invalid"`
	Filtered   int    `json:"filtered"`
	Duplicates int    `json:"duplicates"`
	Loaded     int    `json:"loaded"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ETLCompletedEvent is published when a run finished with every entity loaded
type ETLCompletedEvent struct {
	RunID       string                   `json:"run_id"`
	StartedAt   time.Time                `json:"started_at"`
	DurationMS  int64                    `json:"duration_ms"`
	Mode        string                   `json:"mode"`
	Entities    map[string]EntityOutcome `json:"entities"`
	Integrated  int                      `json:"integrated"`
	PunchSlots  int                      `json:"punch_slots"`
	Diagnostics int                      `json:"diagnostics"`
}

// ETLFailedEvent is published when at least one entity failed to load
type ETLFailedEvent struct {
	ETLCompletedEvent
	Errors []string `json:"errors"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
