// Package doctypes manages document types: the prompt templates that drive
// LLM extraction in the backend.
package doctypes

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/docscan/internal/templateless"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("doctype.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to load document type schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("doctype.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile document type schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Field error messages.
const (
	MsgRequired          = "required"
	MsgFieldNameRequired = "fieldName (required)"
)

// ValidationError lists the invalid form fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid document type: " + strings.Join(parts, ", ")
}

// Validate checks a document type before it is created or updated. Name
// and document type are required and every field or table item needs a
// name.
func Validate(p templateless.Prompt) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode document type: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode document type: %w", err)
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}

	fields := map[string]string{}
	collectFieldErrors(ve, fields)
	if len(fields) == 0 {
		return err
	}
	return &ValidationError{Fields: fields}
}

func collectFieldErrors(ve *jsonschema.ValidationError, fields map[string]string) {
	if len(ve.Causes) == 0 {
		field := strings.SplitN(strings.TrimPrefix(ve.InstanceLocation, "/"), "/", 2)[0]
		switch field {
		case "":
			fields["document"] = ve.Message
		case "fieldsPrompt", "tablePrompt":
			fields[field] = MsgFieldNameRequired
		default:
			fields[field] = MsgRequired
		}
		return
	}
	for _, c := range ve.Causes {
		collectFieldErrors(c, fields)
	}
}
