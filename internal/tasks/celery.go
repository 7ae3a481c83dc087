package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	contentTypeJSON = "application/json"
	contentEncoding = "utf-8"
)

// Task is a single invocation of a named task.
type Task struct {
	Name   string
	Args   []any
	Kwargs map[string]any

	// ID is generated when empty.
	ID      string
	ETA     *time.Time
	Expires *time.Time
	// Retries is the retry count carried in the message headers.
	Retries int
	// MaxRetries is the retry budget on redis brokers. Zero keeps the
	// broker default; a negative value disables retries.
	MaxRetries   int
	IgnoreResult bool
}

// Envelope is a task message in Celery protocol v2.
type Envelope struct {
	ID              string
	Headers         map[string]any
	Body            []byte
	ContentType     string
	ContentEncoding string
	ReplyTo         string
}

// NewEnvelope builds the protocol v2 message: routing data in the headers
// and a JSON body of [args, kwargs, embed].
func NewEnvelope(task Task, replyTo, origin string) (Envelope, error) {
	if task.Name == "" {
		return Envelope{}, ErrEmptyTaskName
	}
	id := task.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := task.Args
	if args == nil {
		args = []any{}
	}
	kwargs := task.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	body, err := json.Marshal([]any{
		args,
		kwargs,
		map[string]any{
			"callbacks": nil,
			"errbacks":  nil,
			"chain":     nil,
			"chord":     nil,
		},
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode task %s: %w", task.Name, err)
	}

	// Nobody collects the result, so the worker must not reply.
	if task.IgnoreResult {
		replyTo = ""
	}

	argsRepr, _ := json.Marshal(args)
	kwargsRepr, _ := json.Marshal(kwargs)

	headers := map[string]any{
		"lang":          "py",
		"task":          task.Name,
		"id":            id,
		"shadow":        nil,
		"eta":           isoTime(task.ETA),
		"expires":       isoTime(task.Expires),
		"group":         nil,
		"group_index":   nil,
		"retries":       task.Retries,
		"timelimit":     []any{nil, nil},
		"root_id":       id,
		"parent_id":     nil,
		"argsrepr":      string(argsRepr),
		"kwargsrepr":    string(kwargsRepr),
		"origin":        origin,
		"ignore_result": task.IgnoreResult,
	}

	return Envelope{
		ID:              id,
		Headers:         headers,
		Body:            body,
		ContentType:     contentTypeJSON,
		ContentEncoding: contentEncoding,
		ReplyTo:         replyTo,
	}, nil
}

func isoTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000+00:00")
}

// defaultOrigin identifies this process the way workers log producers.
func defaultOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("gen%d@%s", os.Getpid(), host)
}

// Result is a task state message from the result backend.
type Result struct {
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Traceback string          `json:"traceback"`
	DateDone  string          `json:"date_done"`
}

// Ready reports whether the state is final.
func (r Result) Ready() bool {
	switch r.Status {
	case "SUCCESS", "FAILURE", "REVOKED":
		return true
	default:
		return false
	}
}

// Err returns ErrTaskFailed for unsuccessful final states.
func (r Result) Err() error {
	switch r.Status {
	case "FAILURE", "REVOKED":
		return fmt.Errorf("%w: %s %s: %s", ErrTaskFailed, r.TaskID, r.Status, r.Traceback)
	default:
		return nil
	}
}
