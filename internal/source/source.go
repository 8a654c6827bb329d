// Package source provides recorded card object tables that implement
// mscfs.Lister: in-memory, JSON snapshots, PostgreSQL and S3.
package source

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
)

// Static replays a fixed object table in order.
type Static struct {
	objects []models.Entry
	pos     int

	// FailAt, when >= 0, makes the call at that position return Err.
	FailAt int
	Err    error
}

// NewStatic creates a Static over a copy of objects.
func NewStatic(objects []models.Entry) *Static {
	s := &Static{FailAt: -1}
	s.objects = append(s.objects, objects...)
	return s
}

// ListEntry implements mscfs.Lister.
func (s *Static) ListEntry(first bool) (models.Entry, bool, error) {
	if first {
		s.pos = 0
	}
	if s.FailAt >= 0 && s.pos == s.FailAt {
		return models.Entry{}, false, s.Err
	}
	if s.pos >= len(s.objects) {
		return models.Entry{}, false, nil
	}
	e := s.objects[s.pos]
	s.pos++
	return e, true, nil
}

// Objects returns a copy of the raw object table.
func (s *Static) Objects() []models.Entry {
	out := make([]models.Entry, len(s.objects))
	copy(out, s.objects)
	return out
}

// Replay defers loading the object table until an enumeration starts.
// Each restart reloads it.
type Replay struct {
	load func() ([]models.Entry, error)
	cur  *Static
}

// NewReplay creates a Replay around load.
func NewReplay(load func() ([]models.Entry, error)) *Replay {
	return &Replay{load: load}
}

// ListEntry implements mscfs.Lister.
func (r *Replay) ListEntry(first bool) (models.Entry, bool, error) {
	if first || r.cur == nil {
		objects, err := r.load()
		if err != nil {
			r.cur = nil
			return models.Entry{}, false, err
		}
		r.cur = NewStatic(objects)
		first = true
	}
	return r.cur.ListEntry(first)
}

var (
	_ mscfs.Lister = (*Static)(nil)
	_ mscfs.Lister = (*Replay)(nil)
)

// Snapshot is the JSON form of a recorded object table.
type Snapshot struct {
	Card    string   `json:"card,omitempty"`
	Objects []Object `json:"objects"`
}

// Object is one raw applet object. Kind is not recorded; the session
// derives it from the identifier.
type Object struct {
	ID   string     `json:"id"`
	Size uint32     `json:"size"`
	ACL  models.ACL `json:"acl"`
}

// ToEntries converts snapshot objects to raw entries.
func (s *Snapshot) ToEntries() ([]models.Entry, error) {
	out := make([]models.Entry, 0, len(s.Objects))
	for i, o := range s.Objects {
		id, err := models.ParseObjectID(o.ID)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		out = append(out, models.Entry{ID: id, Size: o.Size, ACL: o.ACL})
	}
	return out, nil
}

// NewSnapshot records raw entries as a snapshot.
func NewSnapshot(card string, entries []models.Entry) *Snapshot {
	s := &Snapshot{Card: card, Objects: make([]Object, 0, len(entries))}
	for _, e := range entries {
		s.Objects = append(s.Objects, Object{ID: e.ID.String(), Size: e.Size, ACL: e.ACL})
	}
	return s
}

// ReadSnapshot decodes a JSON snapshot into raw entries.
func ReadSnapshot(r io.Reader) ([]models.Entry, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap.ToEntries()
}

// WriteSnapshot encodes raw entries as an indented JSON snapshot.
func WriteSnapshot(w io.Writer, card string, entries []models.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewSnapshot(card, entries))
}

// LoadSnapshot reads a JSON snapshot into a Static.
func LoadSnapshot(r io.Reader) (*Static, error) {
	entries, err := ReadSnapshot(r)
	if err != nil {
		return nil, err
	}
	return NewStatic(entries), nil
}
