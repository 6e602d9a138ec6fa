// Package store persists stage artefacts under a base directory: paginated CSV pages,
// DONE markers, JSON artefacts and error sidecars.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

const (
	// DoneMarker is the zero-byte file published after every page of a unit is written.
	DoneMarker = "DONE"

	defaultMaxRowsPerFile = 10000
	defaultRetryAttempts  = 3
	defaultRetryBackoff   = 50 * time.Millisecond
)

var pageFilePattern = regexp.MustCompile(`_page(\d+)(?:_chunk(\d+))?\.csv$`)

// Config configures a Store.
type Config struct {
	BaseDir        string
	MaxRowsPerFile int
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// Store owns the artefact hierarchy under BaseDir. It holds no per-unit state and is
// safe for concurrent use on distinct keys.
type Store struct {
	baseDir        string
	maxRowsPerFile int
	retryAttempts  int
	retryBackoff   time.Duration
	logger         *logger.Logger
	recorder       *metrics.Recorder
}

// New creates a store rooted at cfg.BaseDir, creating the directory if needed.
func New(cfg Config, log *logger.Logger, recorder *metrics.Recorder) (*Store, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New(errors.ErrCodeConfig, "store base directory is required")
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIOFailed, "failed to create base directory", err)
	}

	if cfg.MaxRowsPerFile <= 0 {
		cfg.MaxRowsPerFile = defaultMaxRowsPerFile
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}

	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	} else if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Store{
		baseDir:        cfg.BaseDir,
		maxRowsPerFile: cfg.MaxRowsPerFile,
		retryAttempts:  cfg.RetryAttempts,
		retryBackoff:   cfg.RetryBackoff,
		logger:         log,
		recorder:       recorder,
	}, nil
}

// BaseDir is the root of the hierarchy.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path joins elements under the base directory without creating anything.
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.baseDir}, elem...)...)
}

// DirectoryPath resolves the directory for key, creating it on first use.
func (s *Store) DirectoryPath(key Key) (string, error) {
	dir, err := s.dir(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to create %s", key)
	}

	return dir, nil
}

func (s *Store) dir(key Key) (string, error) {
	segments, err := key.segments()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid store key", err)
	}

	return s.Path(segments...), nil
}

// IsDone reports whether the DONE marker exists for key.
func (s *Store) IsDone(key Key) bool {
	dir, err := s.dir(key)
	if err != nil {
		return false
	}

	_, err = os.Stat(filepath.Join(dir, DoneMarker))

	return err == nil
}

// MarkDone atomically publishes the DONE marker.
func (s *Store) MarkDone(key Key) error {
	dir, err := s.DirectoryPath(key)
	if err != nil {
		return err
	}

	return s.retry(context.Background(), "mark_done", func() error {
		return writeAtomic(filepath.Join(dir, DoneMarker), nil)
	})
}

// Clear removes every page, the DONE marker and error sidecars for key. JSON artefacts
// are kept.
func (s *Store) Clear(key Key) error {
	dir, err := s.dir(key)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to list %s", key)
	}

	// DONE must never outlive its pages
	if err := removeIfExists(filepath.Join(dir, DoneMarker)); err != nil {
		return errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to remove marker of %s", key)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(pageFilePattern.MatchString(name) || strings.HasSuffix(name, ".error")) {
			continue
		}

		if err := removeIfExists(filepath.Join(dir, name)); err != nil {
			return errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to remove %s", name)
		}
	}

	return nil
}

// WritePage writes frame as page pageIndex of key, split into chunks of at most
// MaxRowsPerFile rows. Strategy and symbol columns are added when absent. Each chunk is
// written to a temporary file and renamed into place.
func (s *Store) WritePage(ctx context.Context, key Key, pageIndex int, f *frame.Frame) error {
	dir, err := s.DirectoryPath(key)
	if err != nil {
		return err
	}

	out := f.Clone()

	if !out.Has(columns.Symbol) {
		if err := out.FillString(columns.Symbol, key.Symbol); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidData, "failed to add symbol column", err)
		}
	}

	if strategy, err := key.Strategy.Take(); err == nil && !out.Has(columns.Strategy) {
		if err := out.FillString(columns.Strategy, strategy); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidData, "failed to add strategy column", err)
		}
	}

	if err := s.removePage(dir, pageIndex); err != nil {
		return errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to remove stale page %d of %s", pageIndex, key)
	}

	chunks := int(math.Ceil(float64(out.Len()) / float64(s.maxRowsPerFile)))

	for k := range chunks {
		chunk := out.Slice(k*s.maxRowsPerFile, (k+1)*s.maxRowsPerFile)

		name := fmt.Sprintf("%s_page%d.csv", key.filePrefix(), pageIndex)
		if chunks > 1 {
			name = fmt.Sprintf("%s_page%d_chunk%d.csv", key.filePrefix(), pageIndex, k)
		}

		path := filepath.Join(dir, name)

		err := s.retry(ctx, "write_page", func() error {
			var buf strings.Builder
			if err := chunk.WriteCSV(&buf); err != nil {
				return err
			}

			return writeAtomic(path, []byte(buf.String()))
		})
		if err != nil {
			s.logger.Error("Failed to write page",
				zap.String("key", key.String()),
				zap.Int("page", pageIndex),
				zap.Error(err),
			)

			return err
		}
	}

	s.recorder.PageWritten(string(key.Stage))

	return nil
}

// PageFiles lists the page files of key in ascending (page, chunk) order.
func (s *Store) PageFiles(key Key) ([]string, error) {
	dir, err := s.dir(key)
	if err != nil {
		return nil, err
	}

	return listPages(dir)
}

// LastPagePath is the path of the highest page file of key, if any.
func (s *Store) LastPagePath(key Key) optional.Option[string] {
	files, err := s.PageFiles(key)
	if err != nil || len(files) == 0 {
		return optional.None[string]()
	}

	return optional.Some(files[len(files)-1])
}

// StreamPages lazily reads the pages of key. Pages are yielded in ascending page order,
// or descending when reversePages is set; chunks of one page are always ascending.
// A page that cannot be read is logged and skipped. Cancellation ends the stream with
// the context error.
func (s *Store) StreamPages(ctx context.Context, key Key, reversePages bool) iter.Seq2[*frame.Frame, error] {
	return func(yield func(*frame.Frame, error) bool) {
		files, err := s.PageFiles(key)
		if err != nil {
			yield(nil, errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to list pages of %s", key))

			return
		}

		if reversePages {
			files = reversePageOrder(files)
		}

		for _, path := range files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)

				return
			}

			f, err := readPage(path)
			if err != nil {
				s.logger.Warn("Skipping unreadable page",
					zap.String("key", key.String()),
					zap.String("path", path),
					zap.Error(err),
				)
				s.recorder.PageSkipped(string(key.Stage), "unreadable")

				continue
			}

			if !yield(f, nil) {
				return
			}
		}
	}
}

// WriteError writes <operation>.error beside the artefacts of key.
func (s *Store) WriteError(key Key, operation string, cause error) error {
	dir, err := s.DirectoryPath(key)
	if err != nil {
		return err
	}

	return WriteErrorAt(dir, operation, cause)
}

// WriteErrorAt writes <operation>.error into dir.
func WriteErrorAt(dir, operation string, cause error) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeIOFailed, "failed to create error directory", err)
	}

	msg := fmt.Sprintf("%s\n%s\n", time.Now().UTC().Format(time.RFC3339), cause)
	if err := writeAtomic(filepath.Join(dir, operation+".error"), []byte(msg)); err != nil {
		return errors.Wrap(errors.ErrCodeIOFailed, "failed to write error sidecar", err)
	}

	return nil
}

// WriteJSON marshals v with indentation and atomically replaces path.
func (s *Store) WriteJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidData, "failed to marshal artefact", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeIOFailed, "failed to create artefact directory", err)
	}

	return s.retry(ctx, "write_json", func() error {
		return writeAtomic(path, append(data, '\n'))
	})
}

// ReadJSON decodes the artefact at path into v.
func (s *Store) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.Newf(errors.ErrCodeArtefactNotFound, "artefact %s not found", path)
	}

	if err != nil {
		return errors.Wrapf(errors.ErrCodeIOFailed, err, "failed to read %s", path)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(errors.ErrCodeArtefactCorrupted, err, "failed to parse %s", path)
	}

	return nil
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// ListDirs returns the sorted names of the subdirectories at the joined path under the
// base directory. A missing directory yields an empty list.
func (s *Store) ListDirs(elem ...string) ([]string, error) {
	entries, err := os.ReadDir(s.Path(elem...))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIOFailed, "failed to list directory", err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}

	slices.Sort(names)

	return names, nil
}

func (s *Store) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == s.retryAttempts {
			break
		}

		s.recorder.IORetry(operation)
		s.logger.Debug("Retrying I/O operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeCanceled, operation+" canceled", ctx.Err())
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}

	return errors.Wrapf(errors.ErrCodeIOFailed, lastErr, "%s failed after %d attempts", operation, s.retryAttempts)
}

func (s *Store) removePage(dir string, pageIndex int) error {
	files, err := listPages(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		page, _ := pageNumbers(filepath.Base(path))
		if page == pageIndex {
			if err := removeIfExists(path); err != nil {
				return err
			}
		}
	}

	return nil
}

func listPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !pageFilePattern.MatchString(entry.Name()) {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	slices.SortFunc(files, func(a, b string) int {
		pa, ca := pageNumbers(filepath.Base(a))
		pb, cb := pageNumbers(filepath.Base(b))

		if pa != pb {
			return pa - pb
		}

		return ca - cb
	})

	return files, nil
}

// reversePageOrder reverses page order while keeping chunks of a page ascending.
func reversePageOrder(files []string) []string {
	var (
		out   []string
		group []string
	)

	current := -1

	for i := len(files) - 1; i >= 0; i-- {
		page, _ := pageNumbers(filepath.Base(files[i]))
		if page != current && len(group) > 0 {
			slices.Reverse(group)
			out = append(out, group...)
			group = nil
		}

		current = page
		group = append(group, files[i])
	}

	slices.Reverse(group)

	return append(out, group...)
}

func pageNumbers(name string) (page, chunk int) {
	m := pageFilePattern.FindStringSubmatch(name)
	if m == nil {
		return -1, -1
	}

	page, _ = strconv.Atoi(m[1])

	if m[2] != "" {
		chunk, _ = strconv.Atoi(m[2])
	}

	return page, chunk
}

func readPage(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return frame.ReadCSV(file, columns.StringColumns())
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return err
	}

	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
