// Package source fetches raw health dumps from a file, stdin or an
// appliance shell over SSH.
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nmslite/drivetemp/internal/config"
)

// Source provides one complete health dump per Fetch.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// FromConfig builds the configured source. stdin backs the "stdin" kind and
// a file path of "-".
func FromConfig(cfg config.SourceConfig, stdin io.Reader) (Source, error) {
	switch cfg.Kind {
	case "ssh":
		return NewSSHSource(cfg.SSH), nil
	case "stdin":
		return NewReaderSource("stdin", stdin), nil
	case "file", "":
		if cfg.Path == "" || cfg.Path == "-" {
			return NewReaderSource("stdin", stdin), nil
		}
		return NewFileSource(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// FileSource reads a dump from a local file.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump file: %w", err)
	}
	return data, nil
}

// ReaderSource reads a dump from a stream until EOF. It can be fetched once.
type ReaderSource struct {
	name string
	r    io.Reader
}

func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.r == nil {
		return nil, fmt.Errorf("source %s has no reader", s.name)
	}
	data, err := io.ReadAll(s.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump from %s: %w", s.name, err)
	}
	return data, nil
}
