package problem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Format identifies a request document encoding.
type Format string

const (
	// FormatYAML is a YAML request document.
	FormatYAML Format = "yaml"

	// FormatJSON is a JSON request document.
	FormatJSON Format = "json"
)

// DetectFormat picks the document format from a file extension. Anything
// that is not .json parses as YAML, which JSON is a subset of.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Loader reads request documents and validates them against the request
// schema before they reach the normalizer.
type Loader struct {
	schemas *SchemaRegistry
}

// NewLoader creates a loader with the built-in request schema.
func NewLoader() (*Loader, error) {
	schemas, err := NewSchemaRegistry()
	if err != nil {
		return nil, engine.NewInternalError("failed to compile request schemas", err).
			WithCode(engine.ErrCodeSchema)
	}

	return &Loader{schemas: schemas}, nil
}

// Load reads and parses a request document from a file.
func (l *Loader) Load(ctx context.Context, path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewIOError("failed to read request document", err).
			WithResource(path)
	}

	return l.Parse(ctx, data, DetectFormat(path))
}

// Parse decodes a request document and validates it against the request
// schema. Unknown fields are rejected, not ignored.
func (l *Loader) Parse(ctx context.Context, data []byte, format Format) (*Request, error) {
	var req Request

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, engine.NewValidationError("request document is not valid JSON", err).
				WithCode(engine.ErrCodeParse)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil {
			return nil, engine.NewValidationError("request document is not valid YAML", err).
				WithCode(engine.ErrCodeParse)
		}
	default:
		return nil, engine.NewValidationError(fmt.Sprintf("unsupported request format %q", format), nil).
			WithCode(engine.ErrCodeParse)
	}

	if err := l.schemas.ValidateRequest(ctx, &req); err != nil {
		return nil, schemaError(err)
	}

	return &req, nil
}

// schemaError flattens CUE validation errors into a classified error with
// the per-position details callers need to fix the document.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	violations := make([]string, 0, len(errs))
	for _, cerr := range errs {
		violations = append(violations, cueerrors.Details(cerr, nil))
	}

	return engine.NewValidationError("request failed schema validation", err).
		WithCode(engine.ErrCodeSchema).
		WithDetail("violations", violations)
}
