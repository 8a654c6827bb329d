// Package models contains the data types shared by the card filesystem packages.
package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FileID is a 2-byte applet identifier for a directory or a file.
type FileID [2]byte

var (
	// NoFile marks an unselected directory or file.
	NoFile = FileID{}
	// RootID identifies the top-level container.
	RootID = FileID{0x3F, 0x00}
)

// IsZero reports whether id is the unselected sentinel.
func (id FileID) IsZero() bool {
	return id == NoFile
}

// Uint16 returns the identifier as a big-endian integer.
func (id FileID) Uint16() uint16 {
	return uint16(id[0])<<8 | uint16(id[1])
}

func (id FileID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// FileIDFromUint16 builds a FileID from its big-endian integer form.
func FileIDFromUint16(v uint16) FileID {
	return FileID{byte(v >> 8), byte(v)}
}

// ParseFileID parses 4 hex digits, e.g. "5015".
func ParseFileID(s string) (FileID, error) {
	var id FileID
	if len(s) != 4 {
		return id, fmt.Errorf("file id %q: want 4 hex digits", s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("file id %q: %w", s, err)
	}
	return id, nil
}

// ObjectID is the applet-native 4-byte address: parent pair then child pair.
type ObjectID [4]byte

var (
	// RootObjectID is the faked identifier of the root directory.
	RootObjectID = ObjectID{0x3F, 0x00, 0x3F, 0x00}
	// RootDirObjectID is the directory-convention identifier of the root.
	RootDirObjectID = ObjectID{0x3F, 0x00, 0x00, 0x00}
)

// MakeObjectID joins a parent and a child identifier.
func MakeObjectID(parent, child FileID) ObjectID {
	return ObjectID{parent[0], parent[1], child[0], child[1]}
}

// Parent returns the directory half of the identifier.
func (o ObjectID) Parent() FileID {
	return FileID{o[0], o[1]}
}

// Child returns the file half of the identifier.
func (o ObjectID) Child() FileID {
	return FileID{o[2], o[3]}
}

func (o ObjectID) String() string {
	return strings.ToUpper(hex.EncodeToString(o[:]))
}

// ParseObjectID parses 8 hex digits, e.g. "50150102".
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 8 {
		return id, fmt.Errorf("object id %q: want 8 hex digits", s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("object id %q: %w", s, err)
	}
	return id, nil
}

// Kind distinguishes directories (DF) from elementary files (EF).
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "DF"
	}
	return "EF"
}

// ACLUserPIN is the access code requiring the user credential.
const ACLUserPIN uint16 = 0x0002

// ACL holds the access-condition codes of an object. They are stored, not enforced.
type ACL struct {
	Read   uint16 `json:"read"`
	Write  uint16 `json:"write"`
	Delete uint16 `json:"delete"`
}

// Entry is one object in the applet listing.
type Entry struct {
	ID   ObjectID `json:"id"`
	Kind Kind     `json:"kind"`
	Size uint32   `json:"size"`
	ACL  ACL      `json:"acl"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Name returns the entry's display name, the hex form of its child identifier.
func (e Entry) Name() string {
	return e.ID.Child().String()
}
