// Package overlay reads the standalone overlay file: a risk multiplier and
// regime label set externally to scale order sizes (spec.md §5 "Overlay
// file: same pattern" as the AI-settings file; glossary "Overlay").
package overlay

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Snapshot is the normalized view of the overlay file.
type Snapshot struct {
	Source         string // "file" | "default" | "read_error_fallback"
	LoadedAt       time.Time
	RiskMultiplier float64
	Regime         string
}

// Default returns the all-defaults overlay: a neutral 1.0 multiplier.
func Default(source string, now time.Time) Snapshot {
	return Snapshot{Source: source, LoadedAt: now, RiskMultiplier: 1.0, Regime: "neutral"}
}

type rawOverlay struct {
	RiskMultiplier *float64 `json:"riskMultiplier"`
	Regime         *string  `json:"regime"`
}

// Reader reads and tolerantly normalizes the overlay file, deduplicating
// repeated read-error log lines the same way internal/aisettings.Reader does.
type Reader struct {
	mu         sync.Mutex
	loggedOnce map[string]bool
	nowFn      func() time.Time
}

// NewReader builds an overlay Reader.
func NewReader() *Reader {
	return &Reader{loggedOnce: make(map[string]bool), nowFn: time.Now}
}

// Read loads path, creating a template holding the default riskMultiplier
// and regime on first run and tolerating
// malformed content by falling back to the defaults snapshot tagged
// read_error_fallback (same single-reader/possibly-concurrent-writer
// contract as internal/aisettings).
func (r *Reader) Read(path string) Snapshot {
	now := r.nowFn()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		def := Default("default", now)
		if werr := r.writeTemplate(path, def); werr != nil {
			log.Printf("overlay: failed to create template file %s: %v", path, werr)
		}
		return def
	}
	if err != nil {
		r.logOnce(err.Error())
		return Default("read_error_fallback", now)
	}

	var raw rawOverlay
	if err := json.Unmarshal(data, &raw); err != nil {
		r.logOnce(err.Error())
		return Default("read_error_fallback", now)
	}

	snap := Default("file", now)
	if raw.RiskMultiplier != nil {
		v := *raw.RiskMultiplier
		if v < 0.1 {
			log.Printf("overlay: riskMultiplier=%v below minimum 0.1, clamped", v)
			v = 0.1
		} else if v > 5.0 {
			log.Printf("overlay: riskMultiplier=%v above maximum 5.0, clamped", v)
			v = 5.0
		}
		snap.RiskMultiplier = v
	}
	if raw.Regime != nil && *raw.Regime != "" {
		snap.Regime = *raw.Regime
	}
	return snap
}

func (r *Reader) logOnce(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loggedOnce[msg] {
		return
	}
	r.loggedOnce[msg] = true
	log.Printf("overlay: read error (falling back to defaults): %s", msg)
}

func (r *Reader) writeTemplate(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(map[string]any{
		"riskMultiplier": snap.RiskMultiplier,
		"regime":         snap.Regime,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
