package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// UnitResult records the outcome of one unit of work. For daily runs a
// unit is one (raster, site) pair; climatology and alert runs have one
// unit per site.
type UnitResult struct {
	Input   string `json:"input,omitempty"`
	Product string `json:"product,omitempty"`
	Date    string `json:"date,omitempty"`
	Site    string `json:"site,omitempty"`
	Output  string `json:"output,omitempty"`
	Points  int    `json:"points"`
	Stage   string `json:"stage,omitempty"` // set on failure: geometry, read, clip, extract, or write
	Error   string `json:"error,omitempty"`
}

// Manifest summarizes one batch run. It is stored alongside the outputs so
// downstream consumers can tell a complete run from a partial one.
type Manifest struct {
	RunID      string       `json:"run_id"`
	Mode       string       `json:"mode"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Units      []UnitResult `json:"units"`
}

func newManifest(mode string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: domain.Now().UTC(),
	}
}

func (m *Manifest) add(u UnitResult) {
	if u.Error == "" {
		m.Succeeded++
	} else {
		m.Failed++
	}
	m.Units = append(m.Units, u)
}

// Path is the object path the manifest is stored under.
func (m *Manifest) Path() string {
	return fmt.Sprintf("manifests/%s_%s.json", m.Mode, m.RunID)
}

func (d *Driver) storeManifest(ctx context.Context, m *Manifest) error {
	m.FinishedAt = domain.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := d.sink.Store(ctx, m.Path(), append(data, '\n')); err != nil {
		return fmt.Errorf("store manifest: %w", err)
	}
	d.last.Store(m)
	return nil
}

// ParseManifest decodes a stored manifest, used by output validation.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
