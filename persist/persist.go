// Package persist mirrors one in-memory entry set to a file on disk.
//
// Each adapter owns a single gob-encoded file named after its cache binding,
// located under {saveDir}/.globalcache/. Writes go to a temporary path in
// the same directory and are published with os.Rename, so a crash mid-write
// never leaves a partial file as the canonical one.
//
// The adapter is a single-process mirror. If two independent processes save
// under the same binding name, the later writer wins; no merge is attempted.
// A best-effort lock file turns the most common form of that mistake into a
// hard error instead of silent data loss.
package persist

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/IvanBrykalov/globalcache/key"
)

// DirName is the subdirectory created under the configured save directory.
const DirName = ".globalcache"

// snapshotVersion guards the on-disk layout. Files written with a different
// version are treated as absent rather than decoded.
const snapshotVersion = 1

// Record is one persisted cache entry. Values are stored as interfaces and
// must be gob-encodable; register custom concrete types with Register.
type Record struct {
	Fingerprint key.Fingerprint
	Seq         uint64
	Value       any
}

type snapshot struct {
	Version int
	Records []Record
}

// IOError wraps a persistence failure (permission, disk full, concurrent
// writer). Decode failures on load are not IOErrors; a corrupt file reads
// as absent.
type IOError struct {
	Op   string // "save", "load" or "delete"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("persist: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrConcurrentWriter is returned (wrapped in *IOError) when another process
// appears to be saving the same binding. A stale lock left by a crashed
// writer must be removed by hand or via Delete.
var ErrConcurrentWriter = errors.New("persist: store file is locked by another writer")

// Register makes a concrete value type storable inside Record.Value.
// Plain scalars, []any and map[string]any are pre-registered.
func Register(v any) { gob.Register(v) }

func init() {
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// Adapter mirrors one binding's entry set to a single file.
// The zero value is not usable; construct with New.
type Adapter struct {
	path string
	log  log.Interface
}

// New returns an adapter rooted at saveDir for the given binding name.
// A nil logger discards output. The file is not created until the first Save.
func New(saveDir, name string, logger log.Interface) *Adapter {
	if logger == nil {
		logger = &log.Logger{Handler: discard.Default}
	}
	return &Adapter{
		path: filepath.Join(saveDir, DirName, sanitize(name)),
		log:  logger,
	}
}

// Path reports the canonical file location for this adapter.
func (a *Adapter) Path() string { return a.path }

// Save durably writes the full record set, replacing any previous file.
// Failures propagate as *IOError; callers are expected not to retry.
func (a *Adapter) Save(records []Record) error {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "save", Path: a.path, Err: err}
	}

	unlock, err := a.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tmp := a.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "save", Path: tmp, Err: err}
	}
	enc := gob.NewEncoder(f)
	if err := enc.Encode(snapshot{Version: snapshotVersion, Records: records}); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "save", Path: tmp, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "save", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "save", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, a.path); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "save", Path: a.path, Err: err}
	}

	a.log.WithField("path", a.path).WithField("entries", len(records)).Debug("cache saved")
	return nil
}

// Load reads the record set written by a previous Save. A missing file is
// not an error: it reports found=false, meaning "no prior cache". A file
// that fails to decode is logged and also reported as absent; only real I/O
// failures surface as *IOError.
func (a *Adapter) Load() (records []Record, found bool, err error) {
	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &IOError{Op: "load", Path: a.path, Err: err}
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		a.log.WithField("path", a.path).WithError(err).Warn("cache file unreadable, ignoring")
		return nil, false, nil
	}
	if snap.Version != snapshotVersion {
		a.log.WithField("path", a.path).WithField("version", snap.Version).Warn("cache file version mismatch, ignoring")
		return nil, false, nil
	}

	a.log.WithField("path", a.path).WithField("entries", len(snap.Records)).Debug("cache loaded")
	return snap.Records, true, nil
}

// Delete removes the store file and any leftover lock. It is idempotent:
// deleting an absent file succeeds.
func (a *Adapter) Delete() error {
	os.Remove(a.path + ".lock")
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "delete", Path: a.path, Err: err}
	}
	return nil
}

// lock takes the per-file write lock. O_EXCL makes creation atomic, so two
// processes saving concurrently cannot both proceed.
func (a *Adapter) lock() (func(), error) {
	lockPath := a.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &IOError{Op: "save", Path: a.path, Err: ErrConcurrentWriter}
		}
		return nil, &IOError{Op: "save", Path: lockPath, Err: err}
	}
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

// sanitize maps a binding name onto a safe single file name.
// Separators and path metacharacters are replaced, not escaped; two names
// that differ only in separators may share a file, which is acceptable for
// the identifier-shaped names bindings use in practice.
func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	s := r.Replace(name)
	if s == "" {
		s = "_"
	}
	return s
}
