// Command validate performs end-to-end integrity checks over a batch
// output tree: every manifest-listed output exists and parses, xyz point
// counts match, climatology reports re-derive (MMM is the maximum of the
// monthly means), and alert series are well formed.
//
// Usage:
//
//	go run ./cmd/validate -out data/processed
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/reefwatch/coral-etl/internal/adapter/xyz"
	"github.com/reefwatch/coral-etl/internal/pipeline"
	"github.com/reefwatch/coral-etl/internal/storage"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	out := flag.String("out", "data/processed", "batch output directory")
	flag.Parse()

	os.Exit(run(*out))
}

func run(outDir string) int {
	ctx := context.Background()
	sink, err := storage.NewLocal(outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open output directory: %v\n", err)
		return 1
	}
	defer sink.Close()

	manifests, err := loadManifests(ctx, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if len(manifests) == 0 {
		fmt.Fprintln(os.Stderr, "no manifests found; nothing to validate")
		return 1
	}

	phases := []*phase{}
	for _, m := range manifests {
		p := &phase{name: fmt.Sprintf("%s run %s", m.Mode, m.RunID)}
		validateManifest(ctx, sink, m, p)
		phases = append(phases, p)
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d runs failed validation\n", failed, len(phases))
		return 1
	}
	fmt.Printf("all %d runs validated\n", len(phases))
	return 0
}

func loadManifests(ctx context.Context, sink storage.Sink) ([]*pipeline.Manifest, error) {
	paths, err := sink.List(ctx, "manifests/")
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	var manifests []*pipeline.Manifest
	for _, p := range paths {
		data, err := sink.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		m, err := pipeline.ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

func validateManifest(ctx context.Context, sink storage.Sink, m *pipeline.Manifest, p *phase) {
	succeeded, failed := 0, 0
	for _, u := range m.Units {
		if u.Error != "" {
			failed++
			if u.Stage == "" {
				p.errorf("failed unit (site %s, input %s) has no stage", u.Site, u.Input)
			}
			continue
		}
		succeeded++
		if u.Output == "" {
			p.errorf("succeeded unit (site %s, input %s) has no output", u.Site, u.Input)
			continue
		}
		validateOutput(ctx, sink, u, p)
	}
	if succeeded != m.Succeeded {
		p.errorf("manifest says %d succeeded, units list %d", m.Succeeded, succeeded)
	}
	if failed != m.Failed {
		p.errorf("manifest says %d failed, units list %d", m.Failed, failed)
	}
}

func validateOutput(ctx context.Context, sink storage.Sink, u pipeline.UnitResult, p *phase) {
	data, err := sink.Read(ctx, u.Output)
	if err != nil {
		p.errorf("%s: %v", u.Output, err)
		return
	}
	switch {
	case strings.HasSuffix(u.Output, ".xyz"):
		validateXYZ(u, data, p)
	case strings.HasPrefix(u.Output, "climatology/"):
		validateClimatologyReport(u.Output, data, p)
	case strings.HasPrefix(u.Output, "alert/"):
		validateAlertSeries(u.Output, data, p)
	}
}

func validateXYZ(u pipeline.UnitResult, data []byte, p *phase) {
	records, err := xyz.Parse(bytes.NewReader(data))
	if err != nil {
		p.errorf("%s: %v", u.Output, err)
		return
	}
	if len(records) != u.Points {
		p.errorf("%s: %d records, manifest says %d points", u.Output, len(records), u.Points)
	}
	for _, r := range records {
		if r.Lon < -180 || r.Lon > 180 || r.Lat < -90 || r.Lat > 90 {
			p.errorf("%s: coordinate (%f, %f) out of range", u.Output, r.Lon, r.Lat)
			return
		}
	}
}

// validateClimatologyReport re-derives the MMM from the twelve monthly
// lines and checks it against the reported value.
func validateClimatologyReport(path string, data []byte, p *phase) {
	means := map[string]float64{}
	var mmm float64
	haveMMM := false

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		if fields[0] == "MMM" {
			mmm, haveMMM = v, true
		} else {
			means[fields[0]] = v
		}
	}

	if len(means) != 12 {
		p.errorf("%s: %d monthly means, want 12", path, len(means))
		return
	}
	if !haveMMM {
		p.errorf("%s: no MMM line", path)
		return
	}
	derived := math.Inf(-1)
	for _, v := range means {
		derived = math.Max(derived, v)
	}
	if math.Abs(derived-mmm) > 1e-3 {
		p.errorf("%s: MMM %.4f but max monthly mean is %.4f", path, mmm, derived)
	}
}

// validateAlertSeries checks row shape, ascending dates, and level range.
func validateAlertSeries(path string, data []byte, p *phase) {
	var prev time.Time
	rows := 0
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		date, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			continue
		}
		rows++
		if !prev.IsZero() && !date.After(prev) {
			p.errorf("%s: date %s not after %s", path, fields[0], prev.Format("2006-01-02"))
			return
		}
		prev = date

		level, err := strconv.Atoi(fields[4])
		if err != nil || level < 0 || level > 4 {
			p.errorf("%s: bad alert level %q on %s", path, fields[4], fields[0])
			return
		}
		dhw, err := strconv.ParseFloat(fields[3], 64)
		if err != nil || dhw < 0 {
			p.errorf("%s: bad DHW %q on %s", path, fields[3], fields[0])
			return
		}
	}
	if rows == 0 {
		p.errorf("%s: no data rows", path)
	}
}
