package apollo

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidRequest is returned when a request fails schema validation.
var ErrInvalidRequest = eris.New("apollo: invalid bulk match request")

// requestSchema mirrors the field limits documented for bulk_match.
const requestSchema = `{
  "type": "object",
  "required": ["details"],
  "properties": {
    "reveal_personal_emails": {"type": "boolean"},
    "reveal_phone_number": {"type": "boolean"},
    "details": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "minProperties": 1,
        "properties": {
          "first_name": {"type": "string", "minLength": 1, "maxLength": 50},
          "last_name": {"type": "string", "minLength": 1, "maxLength": 50},
          "name": {"type": "string", "minLength": 1, "maxLength": 100},
          "email": {"type": "string", "format": "email"},
          "organization_name": {"type": "string", "minLength": 1, "maxLength": 100},
          "domain": {"type": "string", "pattern": "^[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}$"},
          "linkedin_url": {"type": "string", "format": "uri"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	})
	return schema, schemaErr
}

func validateSchema(req BulkMatchRequest) error {
	s, err := loadSchema()
	if err != nil {
		return eris.Wrap(err, "apollo: compile request schema")
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(req))
	if err != nil {
		return eris.Wrap(err, "apollo: validate request")
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return eris.Wrap(ErrInvalidRequest, strings.Join(errs, "; "))
}
