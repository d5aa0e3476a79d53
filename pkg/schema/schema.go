package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema errors.
var (
	ErrInvalidDocument    = errors.New("invalid model document")
	ErrInvalidStateSchema = errors.New("invalid state schema")
	ErrMissingTitle       = errors.New("model document has no info.title")
)

// Validator checks model documents and state values.
type Validator interface {
	// ValidateModel checks a model document. The returned error carries the
	// validator's detail.
	ValidateModel(doc json.RawMessage) error

	// Validate reports whether state conforms to the document's state schema.
	Validate(doc json.RawMessage, state json.RawMessage) bool
}

// documentSchema describes the shape every model document must have.
const documentSchema = `{
  "type": "object",
  "required": ["info"],
  "properties": {
    "info": {
      "type": "object",
      "required": ["title"],
      "properties": {
        "title":       {"type": "string", "minLength": 1, "pattern": "^[^/+#]+$"},
        "version":     {"type": "string"},
        "description": {"type": "string"}
      }
    },
    "state": {"type": ["object", "boolean"]}
  }
}`

var compiledDocumentSchema *jsonschema.Schema

func init() {
	var err error
	compiledDocumentSchema, err = compile("document.json", []byte(documentSchema))
	if err != nil {
		panic(fmt.Sprintf("failed to compile model document schema: %v", err))
	}
}

func compile(location string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return compileValue(location, doc)
}

func compileValue(location string, doc any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(location, doc); err != nil {
		return nil, err
	}
	return c.Compile(location)
}

// Title extracts the model name from a model document.
func Title(doc json.RawMessage) (string, error) {
	var d struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	if err := json.Unmarshal(doc, &d); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if d.Info.Title == "" {
		return "", ErrMissingTitle
	}
	return d.Info.Title, nil
}

// JSONSchemaValidator implements Validator with JSON Schema (draft 2020-12).
// Compiled state schemas are cached per document.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with an empty cache.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// ValidateModel checks doc against the model document schema and compiles its
// state schema, if any.
func (v *JSONSchemaValidator) ValidateModel(doc json.RawMessage) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := compiledDocumentSchema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, flatten(err))
	}
	if _, err := v.stateSchema(doc, inst); err != nil {
		return err
	}
	return nil
}

// Validate reports whether state conforms to the state schema of doc.
// A document without a state schema accepts any value; an empty state is
// checked as JSON null.
func (v *JSONSchemaValidator) Validate(doc json.RawMessage, state json.RawMessage) bool {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return false
	}
	sch, err := v.stateSchema(doc, inst)
	if err != nil {
		return false
	}
	if sch == nil {
		return true
	}

	if len(bytes.TrimSpace(state)) == 0 {
		state = json.RawMessage("null")
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(state))
	if err != nil {
		return false
	}
	return sch.Validate(value) == nil
}

// stateSchema returns the compiled state schema of a parsed document, or nil
// if the document declares none.
func (v *JSONSchemaValidator) stateSchema(raw json.RawMessage, inst any) (*jsonschema.Schema, error) {
	obj, ok := inst.(map[string]any)
	if !ok {
		return nil, ErrInvalidDocument
	}
	stateDoc, ok := obj["state"]
	if !ok {
		return nil, nil
	}

	key := string(raw)

	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.cache[key]; ok {
		return sch, nil
	}
	sch, err := compileValue("state.json", stateDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStateSchema, flatten(err))
	}
	v.cache[key] = sch
	return sch, nil
}

// flatten folds a multi-line validator message into one line.
func flatten(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}

// Compile-time interface satisfaction check.
var _ Validator = (*JSONSchemaValidator)(nil)
