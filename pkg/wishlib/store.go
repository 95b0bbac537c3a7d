package wishlib

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/logger"
)

// maxRecordSize bounds a single persisted line.
const maxRecordSize = 1 << 20

// Store persists the queue as newline-delimited records.
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so a failed write never corrupts the previous state.
type Store struct {
	fs   afero.Fs
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewStore creates a store for the file at path on fs.
// A nil fs means the operating system filesystem.
func NewStore(fs afero.Fs, path string, l logger.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Store{fs: fs, path: path, log: l}
}

// Path returns the location of the persisted queue.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record of the persisted queue in order.
// A missing file is an empty queue. Malformed records and repeated URIs are
// logged and skipped; only an unreadable file is reported as an error.
func (s *Store) Load() ([]*Wish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var (
		wishes []*Wish
		seen   = make(map[string]struct{})
		lineNo int
	)
	br := bufio.NewReader(f)
	for {
		line, tooLong, rerr := readRecord(br)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			// keep what was readable; the rest of the file is treated like
			// malformed records
			s.log.Warning("wishlib: %s: stopped reading after line %d: %v", s.path, lineNo, rerr)
			break
		}
		if len(line) > 0 || tooLong || rerr == nil {
			lineNo++
		}
		switch {
		case tooLong:
			s.log.Warning("wishlib: %s:%d: skipping record longer than %d bytes", s.path, lineNo, maxRecordSize)
		case len(line) > 0:
			w, err := decodeRecord(string(line))
			if err != nil {
				s.log.Warning("wishlib: %s:%d: skipping record: %v", s.path, lineNo, err)
				break
			}
			if _, dup := seen[w.URI]; dup {
				s.log.Warning("wishlib: %s:%d: skipping duplicate uri %s", s.path, lineNo, w.URI)
				break
			}
			seen[w.URI] = struct{}{}
			wishes = append(wishes, w)
		}
		if rerr != nil {
			break
		}
	}
	return wishes, nil
}

// Save replaces the persisted queue with wishes. An empty queue removes the
// file.
func (s *Store) Save(wishes []*Wish) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(wishes) == 0 {
		if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path, err)
		}
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeRecords(tmp, wishes); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, s.path, err)
	}
	return nil
}

// readRecord returns the next line without its terminator. A line longer
// than maxRecordSize is consumed up to its newline and reported as tooLong
// so the following records stay readable.
func readRecord(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxRecordSize+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		return line, tooLong, err
	}
}

func writeRecords(f afero.File, wishes []*Wish) error {
	bw := bufio.NewWriter(f)
	for _, w := range wishes {
		if _, err := bw.WriteString(encodeRecord(w)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
