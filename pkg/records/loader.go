// Package records reads extracted profile records from disk.
//
// A record directory may mix JSON arrays (or single JSON objects), JSON Lines
// and YAML files. Files are decoded in parallel and returned in sorted file
// order, so downstream code sees the same sequence on every run.
package records

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/soundprediction/go-lineage/pkg/types"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files whose extension is not known.
var ErrUnsupportedFormat = errors.New("unsupported record format")

// Format is an on-disk record encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DefaultParallelism is the number of files decoded at once.
const DefaultParallelism = 4

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Stats summarizes a load.
type Stats struct {
	Files    int `json:"files"`
	Records  int `json:"records"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
}

// Loader decodes record files.
type Loader struct {
	logger      *slog.Logger
	parallelism int

	repaired atomic.Int64
	skipped  atomic.Int64
}

// NewLoader creates a Loader that decodes up to parallelism files at once.
func NewLoader(logger *slog.Logger, parallelism int) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	return &Loader{
		logger:      logger,
		parallelism: parallelism,
	}
}

// LoadDir reads every supported file directly under dir. Files with other
// extensions are ignored.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]types.ProfileRecord, *Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read record directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := FormatOf(path); err != nil {
			l.logger.Debug("Ignoring file", "path", path)
			continue
		}
		paths = append(paths, path)
	}
	return l.LoadFiles(ctx, paths)
}

// LoadFiles decodes the given files and returns their records in sorted path
// order. Malformed records are skipped with a warning; only I/O failures and
// unsupported formats are returned as errors.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]types.ProfileRecord, *Stats, error) {
	paths = append([]string(nil), paths...)
	sort.Strings(paths)
	l.repaired.Store(0)
	l.skipped.Store(0)

	results := make([][]types.ProfileRecord, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			recs, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []types.ProfileRecord
	for _, recs := range results {
		all = append(all, recs...)
	}

	stats := &Stats{
		Files:    len(paths),
		Records:  len(all),
		Repaired: int(l.repaired.Load()),
		Skipped:  int(l.skipped.Load()),
	}
	l.logger.Info("Loaded profile records",
		"files", stats.Files,
		"records", stats.Records,
		"repaired", stats.Repaired,
		"skipped", stats.Skipped)
	return all, stats, nil
}

// LoadFile decodes a single file.
func (l *Loader) LoadFile(path string) ([]types.ProfileRecord, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return l.Decode(f, format, path)
}

// Decode reads records of the given format from r. name is only used in log
// messages.
func (l *Loader) Decode(r io.Reader, format Format, name string) ([]types.ProfileRecord, error) {
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return l.decodeJSON(data, name), nil
	case FormatJSONL:
		return l.decodeJSONL(r, name)
	case FormatYAML:
		return l.decodeYAML(r, name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (l *Loader) decodeJSON(data []byte, name string) []types.ProfileRecord {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		repaired, ok := l.repair(data, name)
		if !ok {
			l.skip(name, "file", err)
			return nil
		}
		raw = repaired
	}

	if raw[0] != '[' {
		rec, ok := l.decodeRecord(raw, name)
		if !ok {
			return nil
		}
		return []types.ProfileRecord{rec}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		l.skip(name, "file", err)
		return nil
	}
	out := make([]types.ProfileRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := l.decodeRecord(item, name); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (l *Loader) decodeJSONL(r io.Reader, name string) ([]types.ProfileRecord, error) {
	var out []types.ProfileRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if rec, ok := l.decodeRecord(append([]byte(nil), text...), fmt.Sprintf("%s:%d", name, line)); ok {
			out = append(out, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return out, nil
}

func (l *Loader) decodeYAML(r io.Reader, name string) ([]types.ProfileRecord, error) {
	var out []types.ProfileRecord
	dec := yaml.NewDecoder(r)
	for doc := 1; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The decoder cannot resync after a syntax error.
			l.skip(fmt.Sprintf("%s#%d", name, doc), "document", err)
			break
		}

		root := &node
		if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
			root = root.Content[0]
		}
		items := []*yaml.Node{root}
		if root.Kind == yaml.SequenceNode {
			items = root.Content
		}
		for _, item := range items {
			var rec types.ProfileRecord
			if err := item.Decode(&rec); err != nil {
				l.skip(fmt.Sprintf("%s#%d", name, doc), "record", err)
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *Loader) decodeRecord(data []byte, name string) (types.ProfileRecord, bool) {
	var rec types.ProfileRecord
	err := json.Unmarshal(data, &rec)
	if err == nil {
		return rec, true
	}

	repaired, ok := l.repair(data, name)
	if !ok {
		l.skip(name, "record", err)
		return rec, false
	}
	if err := json.Unmarshal(repaired, &rec); err != nil {
		l.skip(name, "record", err)
		return types.ProfileRecord{}, false
	}
	return rec, true
}

func (l *Loader) repair(data []byte, name string) ([]byte, bool) {
	fixed, err := jsonrepair.JSONRepair(string(data))
	if err != nil || !json.Valid([]byte(fixed)) {
		return nil, false
	}
	l.repaired.Add(1)
	l.logger.Debug("Repaired malformed JSON", "source", name)
	return []byte(strings.TrimSpace(fixed)), true
}

func (l *Loader) skip(name, what string, err error) {
	l.skipped.Add(1)
	l.logger.Warn("Skipping malformed "+what, "source", name, "error", err)
}
