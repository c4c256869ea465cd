package update

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
)

var (
	// ErrMalformedEvent indicates a record missing its status or message.
	// It is a validation failure; the session keeps ingesting after it.
	ErrMalformedEvent = ferrors.ValidationError("malformed event").Warning().Build()

	// ErrSchemaViolation indicates a raw record that does not match the event schema.
	ErrSchemaViolation = ferrors.IngestError("event does not match schema").Build()

	// ErrDecodeFailed indicates a raw record that is not valid JSON.
	ErrDecodeFailed = ferrors.IngestError("failed to decode event").Build()
)

//go:embed event.schema.json
var schemaJSON []byte

const schemaURL = "https://diffwatch.local/schema/repo-update-v1.json"

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = err
			return
		}
		schema, compileErr = compiler.Compile(schemaURL)
	})
	return schema, compileErr
}

// Validate checks the fields every event must carry to be appended.
func Validate(e Event) error {
	var missing []string
	if strings.TrimSpace(e.Status) == "" {
		missing = append(missing, "status")
	}
	if strings.TrimSpace(e.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return ErrMalformedEvent.
			WithContext("event_id", e.ID).
			WithContext("missing", strings.Join(missing, ","))
	}
	return nil
}

// Decode parses one raw record at the ingestion boundary: the JSON is checked
// against the embedded schema, unmarshalled and then validated.
func Decode(raw []byte) (Event, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return Event{}, ErrDecodeFailed.WithCause(err)
	}

	s, err := compiledSchema()
	if err != nil {
		return Event{}, ferrors.InternalError("event schema does not compile").WithCause(err).Build()
	}
	if err := s.Validate(instance); err != nil {
		return Event{}, ErrSchemaViolation.WithCause(err)
	}

	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, ErrDecodeFailed.WithCause(err)
	}
	if err := Validate(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Rejection records a raw record that failed Decode.
type Rejection struct {
	Index int
	Err   error
}

// DecodeBatch decodes a JSON array of raw records. Records that fail Decode
// are reported as rejections instead of aborting the batch; only a document
// that is not a JSON array is an error.
func DecodeBatch(raw []byte) ([]Event, []Rejection, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, ErrDecodeFailed.WithCause(err).WithContext("expected", "array of records")
	}
	events := make([]Event, 0, len(records))
	var rejected []Rejection
	for i, rec := range records {
		e, err := Decode(rec)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		events = append(events, e)
	}
	return events, rejected, nil
}
