package llm

import (
	"fmt"
	"reflect"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"openai", "*llm.openAIProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
			}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			gotType := fmt.Sprintf("%T", p)
			if gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist", Model: "m"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	want := "unknown llm provider: doesnotexist"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProviderEmpty(t *testing.T) {
	_, err := NewProvider(Config{Model: "m"})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
	want := "llm provider not specified"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

// TestDefaultBaseURLs verifies that when BaseURL is empty in the config,
// each provider constructor sets the correct default.
func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"openai", "https://api.openai.com"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
				// BaseURL intentionally left empty.
			}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}

			if gotURL := baseConfig(t, p).BaseURL; gotURL != tt.wantURL {
				t.Errorf("default BaseURL for %q = %q, want %q", tt.provider, gotURL, tt.wantURL)
			}
		})
	}
}

// TestCustomProviderNoDefaultURL confirms the custom provider does not
// override an empty BaseURL with a default.
func TestCustomProviderNoDefaultURL(t *testing.T) {
	p, err := NewProvider(Config{Provider: "custom", Model: "m"})
	if err != nil {
		t.Fatalf("NewProvider(custom): %v", err)
	}
	if gotURL := baseConfig(t, p).BaseURL; gotURL != "" {
		t.Errorf("custom provider BaseURL = %q, want empty", gotURL)
	}
}

// TestExplicitBaseURLPreserved verifies that a user-supplied BaseURL
// is not overwritten by the default.
func TestExplicitBaseURLPreserved(t *testing.T) {
	customURL := "http://my-server:9999"

	for _, provider := range []string{"ollama", "openai", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{
				Provider: provider,
				Model:    "test-model",
				BaseURL:  customURL,
			})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", provider, err)
			}
			if gotURL := baseConfig(t, p).BaseURL; gotURL != customURL {
				t.Errorf("provider %q BaseURL = %q, want %q", provider, gotURL, customURL)
			}
		})
	}
}

// TestModelAndKeyPassedThrough verifies the model and API key from Config
// are stored inside the provider.
func TestModelAndKeyPassedThrough(t *testing.T) {
	p, err := NewProvider(Config{
		Provider: "openai",
		Model:    "text-embedding-3-large",
		APIKey:   "sk-test-key-123",
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	cfg := baseConfig(t, p)
	if cfg.Model != "text-embedding-3-large" {
		t.Errorf("model = %q, want %q", cfg.Model, "text-embedding-3-large")
	}
	if cfg.APIKey != "sk-test-key-123" {
		t.Errorf("api key = %q, want %q", cfg.APIKey, "sk-test-key-123")
	}
}

// baseConfig uses reflection to reach base.cfg on a concrete provider type.
func baseConfig(t *testing.T, p Provider) Config {
	t.Helper()
	v := reflect.ValueOf(p).Elem()
	cfgField := v.FieldByName("base").FieldByName("cfg")
	return Config{
		Provider: cfgField.FieldByName("Provider").String(),
		Model:    cfgField.FieldByName("Model").String(),
		BaseURL:  cfgField.FieldByName("BaseURL").String(),
		APIKey:   cfgField.FieldByName("APIKey").String(),
	}
}
