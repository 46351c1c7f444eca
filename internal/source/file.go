package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/indexscout/index-scout/internal/pkg/errors"
)

// maxLineSize bounds a single log line. Profiler documents embed full query
// documents and can run long.
const maxLineSize = 16 * 1024 * 1024

// FileSource reads newline-delimited extended-JSON profiling records from a
// static log file. Finite; batch mode only.
type FileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// NewFileSource opens the event log at path.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.SourceUnavailable(fmt.Sprintf("open event log %s", path), err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &FileSource{
		path:    path,
		file:    f,
		scanner: scanner,
	}, nil
}

// Next returns the next decoded record. Blank lines are skipped; an
// undecodable line yields a malformed-event error and the scan continues.
func (s *FileSource) Next(ctx context.Context) (RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, errors.SourceUnavailable(fmt.Sprintf("read event log %s", s.path), err)
			}
			return nil, ErrEndOfStream
		}
		s.line++

		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}

		var doc bson.D
		if err := bson.UnmarshalExtJSON([]byte(text), false, &doc); err != nil {
			return nil, errors.MalformedEvent(fmt.Sprintf("line %d: %v", s.line, err))
		}
		return doc, nil
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}
