package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Logger appends every event to daily NDJSON files, giving the pipeline
// a replayable audit trail.
type Logger struct {
	logDir string
	mu     sync.Mutex
}

func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	return &Logger{logDir: logDir}, nil
}

// Log appends one event to the day's log file.
func (l *Logger) Log(ctx context.Context, msg *Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := struct {
		*Message
		LoggedAt string `json:"logged_at"`
	}{
		Message:  msg,
		LoggedAt: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	file, err := os.OpenFile(l.logFilePath(msg.Timestamp), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event log entry: %w", err)
	}
	return nil
}

func (l *Logger) logFilePath(timestamp time.Time) string {
	return filepath.Join(l.logDir, fmt.Sprintf("events_%s.ndjson", timestamp.Format("2006-01-02")))
}

// RegisterLogger subscribes the logger to every event type. Log
// failures are reported but never block the pipeline.
func RegisterLogger(bus *Bus, logger *Logger) {
	for _, eventType := range AllTypes {
		bus.SubscribeAsync(eventType, fmt.Sprintf("logger-%s", eventType), func(msg *message.Message) error {
			var eventMsg Message
			if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
				return err
			}
			if err := logger.Log(msg.Context(), &eventMsg); err != nil {
				slog.Error("failed to log event", "event_id", eventMsg.ID, "error", err)
			}
			return nil
		})
	}
}

// LogReader reads events back from the daily log files.
type LogReader struct {
	logDir string
}

func NewLogReader(logDir string) *LogReader {
	return &LogReader{logDir: logDir}
}

// ReadEvents returns every event logged on the given date, oldest first.
func (r *LogReader) ReadEvents(date time.Time) ([]*Message, error) {
	logFile := filepath.Join(r.logDir, fmt.Sprintf("events_%s.ndjson", date.Format("2006-01-02")))

	data, err := os.ReadFile(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Message{}, nil
		}
		return nil, fmt.Errorf("failed to read event log file: %w", err)
	}

	var events []*Message
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry struct {
			*Message
			LoggedAt string `json:"logged_at"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("skipping malformed event log entry", "error", err)
			continue
		}
		events = append(events, entry.Message)
	}
	return events, nil
}

// ReadEventsByType filters one day's events down to a single type.
func (r *LogReader) ReadEventsByType(date time.Time, eventType Type) ([]*Message, error) {
	all, err := r.ReadEvents(date)
	if err != nil {
		return nil, err
	}
	var filtered []*Message
	for _, ev := range all {
		if ev.Type == eventType {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}
