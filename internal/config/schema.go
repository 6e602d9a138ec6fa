package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON schema of the configuration document.
func GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{ //nolint:exhaustruct
		DoNotReference:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeFor[time.Duration]() {
				return &jsonschema.Schema{ //nolint:exhaustruct
					Type:        "string",
					Description: "Go duration such as 500ms or 5s",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(&Config{}) //nolint:exhaustruct
	schema.Title = "walkforward-config"
	schema.Description = "Configuration schema for the walk-forward pipeline and live runtime"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON returns the indented schema document.
func GenerateSchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}
