package overlay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadCreatesTemplateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")

	r := NewReader()
	snap := r.Read(path)
	if snap.Source != "default" || snap.RiskMultiplier != 1.0 {
		t.Fatalf("expected neutral default overlay, got %+v", snap)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected template file written: %v", err)
	}
}

func TestReadFallsBackOnMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := NewReader()
	snap := r.Read(path)
	if snap.Source != "read_error_fallback" {
		t.Fatalf("expected read_error_fallback, got %q", snap.Source)
	}
}

func TestReadClampsRiskMultiplier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")
	if err := os.WriteFile(path, []byte(`{"riskMultiplier": 50, "regime": "risk_off"}`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := NewReader()
	snap := r.Read(path)
	if snap.RiskMultiplier != 5.0 {
		t.Fatalf("expected clamp to 5.0, got %v", snap.RiskMultiplier)
	}
	if snap.Regime != "risk_off" {
		t.Fatalf("expected regime passthrough, got %q", snap.Regime)
	}
}
