package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
telephony:
  base_url: https://calls.example.com
  token: test-token
  callback_url: https://app.example.com/api/webhooks/calls
  caller_id: "+15551234567"
agent:
  api_key: test-key
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Session.GreetingDelay != 500*time.Millisecond {
		t.Errorf("greeting delay = %v, want 500ms", cfg.Session.GreetingDelay)
	}
	if cfg.Telephony.Voice != "en-US-JennyNeural" {
		t.Errorf("voice = %q", cfg.Telephony.Voice)
	}
	if cfg.Agent.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Agent.Provider)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CALLFLOW_TOKEN", "expanded-token")

	yaml := strings.Replace(minimalYAML, "test-token", "${TEST_CALLFLOW_TOKEN}", 1)
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telephony.Token != "expanded-token" {
		t.Errorf("token = %q, want expanded value", cfg.Telephony.Token)
	}
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 9999\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"base_url", "token", "callback_url", "caller_id", "api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestParse_BadProvider(t *testing.T) {
	yaml := minimalYAML + "  provider: cohere\n"
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telephony.BaseURL != "https://calls.example.com" {
		t.Errorf("base_url = %q", cfg.Telephony.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
