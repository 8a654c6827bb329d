package mscfs

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cardcontact/cardfs/pkg/models"
)

var rootPrefix = []byte{0x3F, 0x00}

// LookupPath maps a path of 2-byte components to an object identifier,
// relative to the current directory. It never touches the cache.
//
// With wantDirectory the path must name a first-level directory, either as
// 3F00/XXXX or as a bare XXXX while the current directory is root; the
// result uses the directory convention {XXXX, 0000}.
func (s *Session) LookupPath(path []byte, wantDirectory bool) (models.ObjectID, error) {
	var id models.ObjectID
	if len(path)%2 != 0 {
		return id, fmt.Errorf("lookup %X: odd path length: %w", path, ErrInvalidArguments)
	}

	if wantDirectory {
		underRoot := len(path) == 4 && bytes.HasPrefix(path, rootPrefix)
		atRoot := len(path) == 2 && s.currentPath == models.RootID
		if !underRoot && !atRoot {
			return id, fmt.Errorf("lookup directory %X: %w", path, ErrInvalidArguments)
		}
		n := len(path)
		return models.ObjectID{path[n-2], path[n-1], 0, 0}, nil
	}

	parent := s.currentPath
	if len(path) > 2 && bytes.HasPrefix(path, rootPrefix) {
		path = path[2:]
		parent = models.RootID
	}
	// one directory level only
	if len(path) > 4 {
		return id, fmt.Errorf("lookup %X: path too deep: %w", path, ErrInvalidArguments)
	}

	switch len(path) {
	case 0:
		return models.RootObjectID, nil
	case 2:
		if bytes.Equal(path, rootPrefix) {
			return models.RootObjectID, nil
		}
		return models.MakeObjectID(parent, models.FileID{path[0], path[1]}), nil
	default:
		copy(id[:], path)
		return id, nil
	}
}

// LookupLocal addresses a file in the current directory by numeric id.
func (s *Session) LookupLocal(id uint16) models.ObjectID {
	return models.MakeObjectID(s.currentPath, models.FileIDFromUint16(id))
}

// ParsePath converts a slash-separated list of 4-hex-digit components, such
// as "3F00/5015/0102", to path bytes. An empty string or "/" is the empty path.
func ParsePath(p string) ([]byte, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil
	}
	parts := strings.Split(p, "/")
	out := make([]byte, 0, 2*len(parts))
	for _, part := range parts {
		id, err := models.ParseFileID(part)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %v: %w", p, err, ErrInvalidArguments)
		}
		out = append(out, id[0], id[1])
	}
	return out, nil
}
