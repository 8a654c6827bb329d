// Package mscfs maps hierarchical card paths onto the flat 4-byte object
// namespace of a MuscleCard-style applet.
//
// A Session caches the applet's object listing, resolves paths against the
// current directory and tracks the current directory and file selection.
// A Session is not safe for concurrent use; callers sharing one must
// serialize access.
package mscfs

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cardcontact/cardfs/pkg/models"
)

const (
	// NoIndex is the index returned alongside an error.
	NoIndex = -1
	// VirtualIndex is the index returned for the synthesized root entry.
	VirtualIndex = -2
)

// Selection is the kind of selection an operation requires.
type Selection int

const (
	SelectAny Selection = iota
	SelectDirectory
	SelectFile
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithCacheIncrement sets the number of entries added per cache growth.
func WithCacheIncrement(n int) Option {
	return func(s *Session) { s.cache.Increment = n }
}

// WithCacheLimit caps the number of cached entries. Zero means unlimited.
func WithCacheLimit(n int) Option {
	return func(s *Session) { s.cache.Limit = n }
}

// WithObserver registers an observer for cache and lookup events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.obs = o }
}

// Session is one card connection's view of the applet filesystem.
type Session struct {
	currentPath models.FileID
	currentFile models.FileID

	lister    Lister
	cache     *Cache
	populated bool

	log *zap.Logger
	obs Observer
}

// New creates a session positioned at the root with an empty cache.
func New(lister Lister, opts ...Option) *Session {
	s := &Session{
		currentPath: models.RootID,
		currentFile: models.NoFile,
		lister:      lister,
		cache:       NewCache(),
		log:         zap.NewNop(),
		obs:         nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache. It is safe to call more than once.
func (s *Session) Close() {
	s.Invalidate()
}

// CurrentPath returns the selected directory.
func (s *Session) CurrentPath() models.FileID {
	return s.currentPath
}

// CurrentFile returns the selected file, or models.NoFile.
func (s *Session) CurrentFile() models.FileID {
	return s.currentFile
}

// Invalidate drops the cached listing; the next lookup re-enumerates.
func (s *Session) Invalidate() {
	s.cache.Clear()
	s.populated = false
}

// Len returns the number of cached entries.
func (s *Session) Len() int {
	return s.cache.Len()
}

// Entries returns a copy of the cached listing.
func (s *Session) Entries() []models.Entry {
	return s.cache.Entries()
}

// RawEntries returns the cached listing addressed the way the applet lists
// it. Replaying them through a Lister rebuilds the same cache.
func (s *Session) RawEntries() []models.Entry {
	out := s.cache.Entries()
	for i := range out {
		out[i] = denormalize(out[i])
	}
	return out
}

// EnsurePopulated enumerates the card unless a listing is already cached.
func (s *Session) EnsurePopulated() error {
	if s.populated {
		return nil
	}
	_, err := s.Repopulate()
	return err
}

// Repopulate clears the cache and enumerates the whole object table.
// It returns the number of cached entries. A lister error is returned
// unchanged and leaves the cache empty.
func (s *Session) Repopulate() (int, error) {
	start := time.Now()
	n, err := s.fill()
	if err != nil {
		s.Invalidate()
		s.log.Error("cache population failed", zap.Error(err))
		s.obs.CachePopulated(0, time.Since(start), err)
		return 0, err
	}
	s.populated = true
	s.log.Debug("cache populated",
		zap.Int("entries", n),
		zap.Int("grows", s.cache.Grows()),
		zap.Duration("duration", time.Since(start)))
	s.obs.CachePopulated(n, time.Since(start), nil)
	return n, nil
}

func (s *Session) fill() (int, error) {
	s.Invalidate()
	seen := make(map[models.ObjectID]struct{})
	first := true
	for {
		e, ok, err := s.lister.ListEntry(first)
		if err != nil {
			return 0, err
		}
		if !ok {
			return s.cache.Len(), nil
		}
		first = false

		if IsIgnored(e.ID) {
			continue
		}
		e = normalize(e)
		if _, dup := seen[e.ID]; dup {
			s.log.Warn("duplicate object skipped", zap.Stringer("id", e.ID))
			continue
		}
		before := s.cache.Cap()
		if err := s.cache.Push(e); err != nil {
			return 0, fmt.Errorf("cache object %s: %w", e.ID, err)
		}
		seen[e.ID] = struct{}{}
		if c := s.cache.Cap(); c != before && before > 0 {
			s.obs.CacheGrown(c)
		}
	}
}

// CheckSelection verifies that a directory, and for SelectFile a file, is selected.
func (s *Session) CheckSelection(required Selection) error {
	if s.currentPath.IsZero() {
		return fmt.Errorf("no directory selected: %w", ErrInvalidArguments)
	}
	if required == SelectFile && s.currentFile.IsZero() {
		return fmt.Errorf("no file selected: %w", ErrInvalidArguments)
	}
	return nil
}

// rootEntry is the synthesized entry for the root directory, which the
// applet does not list.
func rootEntry() models.Entry {
	return models.Entry{
		ID:   models.RootObjectID,
		Kind: models.KindDirectory,
		ACL: models.ACL{
			Read:   0,
			Write:  models.ACLUserPIN,
			Delete: models.ACLUserPIN,
		},
	}
}

// LoadFileInfo resolves path and returns the matching entry and its cache
// index. The root is always found; when the card does not list it, a
// synthesized entry is returned with VirtualIndex. Errors come with NoIndex.
func (s *Session) LoadFileInfo(path []byte) (models.Entry, int, error) {
	id, err := s.LookupPath(path, false)
	if err != nil {
		return models.Entry{}, NoIndex, err
	}
	if err := s.EnsurePopulated(); err != nil {
		return models.Entry{}, NoIndex, err
	}

	if i := s.cache.Find(id); i >= 0 {
		s.obs.Lookup(true, false)
		return s.cache.At(i), i, nil
	}
	if id == models.RootObjectID || id == models.RootDirObjectID {
		s.obs.Lookup(true, true)
		return rootEntry(), VirtualIndex, nil
	}
	s.obs.Lookup(false, false)
	return models.Entry{}, NoIndex, fmt.Errorf("object %s: %w", id, ErrFileNotFound)
}

// Select loads path and moves the selection to it. Selecting a directory
// clears the current file.
func (s *Session) Select(path []byte) (models.Entry, error) {
	e, _, err := s.LoadFileInfo(path)
	if err != nil {
		return models.Entry{}, err
	}
	if e.IsDir() {
		s.currentPath = e.ID.Child()
		s.currentFile = models.NoFile
	} else {
		s.currentPath = e.ID.Parent()
		s.currentFile = e.ID.Child()
	}
	s.log.Debug("selected",
		zap.Stringer("id", e.ID),
		zap.Stringer("kind", e.Kind))
	return e, nil
}

// ListDirectory returns the entries whose parent is dir, in listing order.
func (s *Session) ListDirectory(dir models.FileID) ([]models.Entry, error) {
	if err := s.EnsurePopulated(); err != nil {
		return nil, err
	}
	var out []models.Entry
	for _, e := range s.cache.entries {
		if e.ID.Parent() == dir && e.ID != models.RootObjectID {
			out = append(out, e)
		}
	}
	return out, nil
}
