package config_test

import (
	"errors"
	"testing"

	"studypartner/internal/config"

	"github.com/stretchr/testify/assert"
)

func validConfig() config.Config {
	return config.Config{
		DBHost:              "localhost",
		DBName:              "db",
		APIKeys:             []string{"k1"},
		EmbeddingModel:      "gemini-embedding-001",
		EmbeddingDimensions: 768,
		RetrievalTopK:       15,
		VectorBackend:       "weaviate",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:   "Valid Config",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "Missing API Keys",
			mutate:  func(c *config.Config) { c.APIKeys = nil },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBHost",
			mutate:  func(c *config.Config) { c.DBHost = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBName",
			mutate:  func(c *config.Config) { c.DBName = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Zero Dimensions",
			mutate:  func(c *config.Config) { c.EmbeddingDimensions = 0 },
			wantErr: true,
		},
		{
			name:    "Zero TopK",
			mutate:  func(c *config.Config) { c.RetrievalTopK = 0 },
			wantErr: true,
		},
		{
			name:    "Unknown Backend",
			mutate:  func(c *config.Config) { c.VectorBackend = "chroma" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
