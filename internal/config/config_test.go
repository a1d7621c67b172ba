package config

import "testing"

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAX_CONTEXT_TOKENS", "")
	t.Setenv("CONTEXT_THRESHOLD", "")
	t.Setenv("OLLAMA_URL", "http://ollama:11434/")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxContextTokens != 32000 {
		t.Errorf("max context: got %d", c.MaxContextTokens)
	}
	if c.ContextThreshold != 0.8 {
		t.Errorf("threshold: got %v", c.ContextThreshold)
	}
	if c.OllamaURL != "http://ollama:11434" {
		t.Errorf("trailing slash kept: %s", c.OllamaURL)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CONTEXT_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected threshold error")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " http://a.rw, ,http://b.rw ")
	got := envList("CORS_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a.rw" || got[1] != "http://b.rw" {
		t.Errorf("got %v", got)
	}
}

func TestLoadRisk(t *testing.T) {
	t.Setenv("RISK_PORT", "9001")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("CORS_ORIGINS", "https://a.rw, https://b.rw")
	c := LoadRisk()
	if c.BackendURL != "http://localhost:9001" {
		t.Errorf("backend url %q", c.BackendURL)
	}
	if c.MaxPlots != 10 || len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.rw" {
		t.Errorf("config %+v", c)
	}
}
