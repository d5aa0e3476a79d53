package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatModel = `{
  "info": {"title": "chat", "version": "1.0.0"},
  "state": {
    "type": "object",
    "required": ["from", "body"],
    "properties": {
      "from": {"type": "string"},
      "to":   {"type": "string"},
      "body": {"type": "string"}
    }
  }
}`

func TestTitle(t *testing.T) {
	name, err := Title(json.RawMessage(chatModel))
	require.NoError(t, err)
	assert.Equal(t, "chat", name)

	_, err = Title(json.RawMessage(`{"info": {}}`))
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = Title(json.RawMessage(`not json`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestValidateModel(t *testing.T) {
	v := NewJSONSchemaValidator()

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"valid with state schema", chatModel, nil},
		{"valid without state schema", `{"info": {"title": "notes"}}`, nil},
		{"boolean state schema", `{"info": {"title": "any"}, "state": true}`, nil},
		{"not json", `{`, ErrInvalidDocument},
		{"not an object", `[1, 2]`, ErrInvalidDocument},
		{"missing info", `{"state": {}}`, ErrInvalidDocument},
		{"empty title", `{"info": {"title": ""}}`, ErrInvalidDocument},
		{"title with separator", `{"info": {"title": "chat/room"}}`, ErrInvalidDocument},
		{"broken state schema", `{"info": {"title": "x"}, "state": {"type": 12}}`, ErrInvalidStateSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateModel(json.RawMessage(tt.doc))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestValidateState(t *testing.T) {
	v := NewJSONSchemaValidator()
	doc := json.RawMessage(chatModel)

	assert.True(t, v.Validate(doc, json.RawMessage(`{"from": "a@example.org", "body": "hi"}`)))
	assert.False(t, v.Validate(doc, json.RawMessage(`{"from": "a@example.org"}`)))
	assert.False(t, v.Validate(doc, json.RawMessage(`{"from": 1, "body": "hi"}`)))
	assert.False(t, v.Validate(doc, nil), "empty state is null and fails an object schema")
	assert.False(t, v.Validate(doc, json.RawMessage(`{`)))
}

func TestValidateStateWithoutSchemaAcceptsAnything(t *testing.T) {
	v := NewJSONSchemaValidator()
	doc := json.RawMessage(`{"info": {"title": "notes"}}`)

	assert.True(t, v.Validate(doc, json.RawMessage(`42`)))
	assert.True(t, v.Validate(doc, nil))
}

func TestValidateCachesCompiledSchema(t *testing.T) {
	v := NewJSONSchemaValidator()
	doc := json.RawMessage(chatModel)

	require.NoError(t, v.ValidateModel(doc))
	require.Len(t, v.cache, 1)

	v.Validate(doc, json.RawMessage(`{"from": "x", "body": "y"}`))
	assert.Len(t, v.cache, 1)
}
