package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaID identifies the history document schema.
const SchemaID = "https://github.com/ericfisherdev/clipview/history.schema.json"

// ErrInvalidDocument is returned by Validate when data is not a well-formed
// history document.
var ErrInvalidDocument = errors.New("invalid history document")

// Schema returns the JSON schema of the history document.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := r.Reflect(&document{})

	schema.ID = SchemaID
	schema.Title = "clipview history"
	schema.Description = "Clipboard history as written by clipview"

	return schema
}

// SchemaJSON returns Schema rendered as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*santhosh.Schema, error) {
	data, err := SchemaJSON()
	if err != nil {
		return nil, err
	}

	compiler := santhosh.NewCompiler()
	if err := compiler.AddResource(SchemaID, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(SchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Validate checks data against the history document schema. Failures wrap
// ErrInvalidDocument.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}
