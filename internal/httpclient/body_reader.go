package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// NewBodySource returns a body backed by the inline payload or by the payload
// file. Supplying both is an error.
func NewBodySource(inline, path string) (BodySource, error) {
	path = strings.TrimSpace(path)
	if inline != "" && path != "" {
		return nil, errors.New("payload and payload file cannot both be provided")
	}

	if inline != "" {
		return &inlineBodySource{data: []byte(inline)}, nil
	}

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("payload file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("payload file %q is a directory", path)
		}
		// The fixture is read once so every iteration sends identical bytes
		// without touching the filesystem.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("payload file: %w", err)
		}
		return &inlineBodySource{data: data}, nil
	}

	return emptyBodySource{}, nil
}

type inlineBodySource struct {
	data []byte
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}
