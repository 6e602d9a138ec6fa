package provider

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// StreamConfig configures the WebSocket stream client.
type StreamConfig struct {
	URL          string        `yaml:"url" json:"url" jsonschema:"title=URL,description=WebSocket endpoint of the bar stream" validate:"required,url"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Key sent in the auth message; may be set with STREAM_API_KEY"`
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval" jsonschema:"title=Ping Interval,type=string" default:"30s" validate:"gt=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout" jsonschema:"title=Dial Timeout,type=string" default:"10s" validate:"gt=0"`
}

// Validate validates the StreamConfig fields.
func (c *StreamConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid stream config: %w", err)
	}

	return nil
}
