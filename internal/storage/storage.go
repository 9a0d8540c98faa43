package storage

import (
	"fmt"
	"io"
	"time"
)

// Event is one completed exchange: a visitor question and the text shown
// back, which may be a fallback.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Channel           string    `json:"channel"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Outcome           string    `json:"outcome"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions returns events in the order they were appended.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}

// Nop drops everything. It stands in when recording is disabled.
type Nop struct{}

func (Nop) AppendInteraction(Event) error      { return nil }
func (Nop) LoadInteractions() ([]Event, error) { return nil, nil }

// Open returns the recorder for backend ("file" or "sqlite"). An empty
// location for the chosen backend disables recording.
func Open(backend, filePath, sqlitePath string) (Recorder, error) {
	switch backend {
	case "sqlite":
		if sqlitePath == "" {
			return Nop{}, nil
		}
		return NewSQLiteRecorder(sqlitePath)
	case "file", "":
		if filePath == "" {
			return Nop{}, nil
		}
		return NewFileRecorder(filePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

// Close releases r if it holds resources, such as an open database.
func Close(r Recorder) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
