package logger

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger emits one JSON object per line to stdout. Every call names an action
// (machine-filterable) and a human message; details carry the structured rest.
type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Service   string                 `json:"service"`
	Hostname  string                 `json:"hostname"`
	RequestID string                 `json:"request_id,omitempty"`
	Action    string                 `json:"action"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type jsonLogger struct {
	service  string
	hostname string
	mu       sync.Mutex
	enc      *json.Encoder
}

// New builds a logger tagged with the service name (the --mode the binary runs
// in).
func New(service string) Logger {
	hostname, _ := os.Hostname()
	return &jsonLogger{
		service:  service,
		hostname: hostname,
		enc:      json.NewEncoder(os.Stdout),
	}
}

func (l *jsonLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.write("INFO", action, message, requestID, details, nil)
}

func (l *jsonLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.write("DEBUG", action, message, requestID, details, nil)
}

func (l *jsonLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	l.write("ERROR", action, message, requestID, details, err)
}

func (l *jsonLogger) write(level, action, message, requestID string, details map[string]interface{}, err error) {
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Hostname:  l.hostname,
		RequestID: requestID,
		Action:    action,
		Message:   message,
		Details:   details,
	}
	if err != nil {
		e.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.enc.Encode(e)
}

// Nop discards everything; used by tests that do not assert on log output.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Info(string, string, string, map[string]interface{})         {}
func (nopLogger) Debug(string, string, string, map[string]interface{})        {}
func (nopLogger) Error(string, string, string, map[string]interface{}, error) {}
