package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response shapes checked before a 2xx body is trusted.
const (
	chatCompletionSchema = `{
  "type": "object",
  "required": ["choices"],
  "properties": {
    "choices": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "message": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string"}}
          }
        }
      }
    }
  }
}`

	f5SubmitSchema = `{
  "type": "object",
  "required": ["task_id"],
  "properties": {"task_id": {"type": "string", "minLength": 1}}
}`

	f5StatusSchema = `{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "string"},
    "audio_url": {"type": ["string", "null"]},
    "error_message": {"type": ["string", "null"]}
  }
}`
)

var (
	chatCompletionValidator = mustCompileSchema("chat_completion.json", chatCompletionSchema)
	f5SubmitValidator       = mustCompileSchema("f5_submit.json", f5SubmitSchema)
	f5StatusValidator       = mustCompileSchema("f5_status.json", f5StatusSchema)
)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeValidated unmarshals body into v after checking it against schema.
// Any failure is reported as ErrMalformedResponse.
func decodeValidated(body []byte, schema *jsonschema.Schema, v any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
