package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreamConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  StreamConfig
		wantErr bool
	}{
		{
			name:    "valid",
			config:  StreamConfig{URL: "wss://stream.example.com/v2/iex", APIKey: "k", PingInterval: time.Second, DialTimeout: time.Second},
			wantErr: false,
		},
		{
			name:    "missing url",
			config:  StreamConfig{URL: "", APIKey: "k", PingInterval: time.Second, DialTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "invalid url",
			config:  StreamConfig{URL: "not a url", APIKey: "", PingInterval: time.Second, DialTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "zero ping interval",
			config:  StreamConfig{URL: "wss://stream.example.com", APIKey: "", PingInterval: 0, DialTimeout: time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
