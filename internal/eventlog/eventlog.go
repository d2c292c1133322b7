package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of pipeline interaction event
type EventType string

const (
	EventPipelineStarted      EventType = "pipeline_started"
	EventRecognitionCompleted EventType = "recognition_completed"
	EventDialogCompleted      EventType = "dialog_completed"
	EventSynthesisCompleted   EventType = "synthesis_completed"
	EventCRMAction            EventType = "crm_action"
	EventPipelineCompleted    EventType = "pipeline_completed"
	EventSessionEnded         EventType = "session_ended"
)

// Event is one persisted interaction event.
type Event struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Logger provides interaction event logging to the database.
// A nil pool disables persistence; all operations become no-ops.
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Enabled reports whether events are being persisted.
func (l *Logger) Enabled() bool {
	return l != nil && l.db != nil
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, sessionID string, eventType EventType, data map[string]any) error {
	if !l.Enabled() || sessionID == "" {
		return nil // Silently skip if no DB or session ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO interaction_events (session_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, sessionID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(sessionID string, eventType EventType, data map[string]any) {
	if !l.Enabled() || sessionID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, sessionID, eventType, data)
	}()
}

// Recent returns the newest events, newest first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if !l.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := l.db.Query(ctx, `
		SELECT id, session_id, event_type, event_data, created_at
		FROM interaction_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var dataJSON []byte
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &dataJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &ev.EventData)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
