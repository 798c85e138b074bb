// Package xyz serializes extracted points as flat coordinate tables: one
// "longitude latitude value" record per line. The format is the contract
// with downstream report assembly, which consumes files by path convention
// only.
package xyz

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// Record is one parsed xyz line.
type Record struct {
	Lon, Lat, Value float64
}

// Encode renders points in received order with fixed-width formatting.
// Identical input always produces identical bytes, which is what makes
// pipeline re-runs byte-idempotent.
func Encode(points []domain.ExtractedPoint) []byte {
	var b bytes.Buffer
	for _, p := range points {
		fmt.Fprintf(&b, "%.4f %.4f %.4f\n", p.Lon, p.Lat, p.Value)
	}
	return b.Bytes()
}

// WriteFile writes points to path, replacing any existing file. The only
// error it can produce is an IOFailure on an unwritable destination.
func WriteFile(points []domain.ExtractedPoint, path string) error {
	if err := os.WriteFile(path, Encode(points), 0o644); err != nil {
		return &domain.IOFailure{Path: path, Err: err}
	}
	return nil
}

// Parse reads xyz records back from r. Blank lines are skipped; any other
// malformed line is an error, since these files are machine-written.
func Parse(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(fields))
		}
		var rec Record
		var err error
		if rec.Lon, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		if rec.Lat, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		if rec.Value, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: value: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseFile reads one xyz file from disk.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOFailure{Path: path, Err: err}
	}
	defer f.Close()
	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
