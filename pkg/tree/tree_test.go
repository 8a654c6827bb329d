package tree

import (
	"testing"

	"github.com/cardcontact/cardfs/pkg/models"
)

var rootEntry = models.Entry{ID: models.RootObjectID, Kind: models.KindDirectory}

func sampleEntries() []models.Entry {
	return []models.Entry{
		{ID: models.ObjectID{0x3F, 0x00, 0x50, 0x15}, Kind: models.KindDirectory},
		{ID: models.ObjectID{0x50, 0x15, 0x01, 0x02}, Kind: models.KindFile, Size: 10},
		{ID: models.ObjectID{0x3F, 0x00, 0x00, 0x01}, Kind: models.KindFile, Size: 5},
		{ID: models.ObjectID{0x60, 0x00, 0x00, 0x09}, Kind: models.KindFile},
	}
}

func TestBuild(t *testing.T) {
	root := Build(rootEntry, sampleEntries())

	if !root.IsDir() || root.Path != "/" {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	df := root.Child("5015")
	if df == nil || !df.IsDir() {
		t.Fatal("directory 5015 missing")
	}
	if len(df.Children) != 1 || df.Children[0].Path != "/5015/0102" {
		t.Errorf("unexpected children of 5015: %+v", df.Children)
	}
	if root.Child("0001") == nil {
		t.Error("root file 0001 missing")
	}
	if FindByID(root, models.ObjectID{0x60, 0x00, 0x00, 0x09}) != nil {
		t.Error("orphan file should be dropped")
	}
}

func TestBuild_SkipsListedRoot(t *testing.T) {
	entries := append([]models.Entry{{ID: models.RootObjectID, Kind: models.KindDirectory, Size: 3}}, sampleEntries()...)
	root := Build(rootEntry, entries)
	if got := CountNodes(root); got != 4 {
		t.Errorf("CountNodes = %d, want 4", got)
	}
}

func TestFindByPath(t *testing.T) {
	root := Build(rootEntry, sampleEntries())

	tests := []struct {
		path  string
		found bool
	}{
		{"/", true},
		{"/5015", true},
		{"/5015/0102", true},
		{"/0001", true},
		{"/nonexistent", false},
	}

	for _, tt := range tests {
		node := FindByPath(root, tt.path)
		if (node != nil) != tt.found {
			t.Errorf("FindByPath(%q) found=%v, want %v", tt.path, node != nil, tt.found)
		}
		if node != nil && node.Path != tt.path {
			t.Errorf("FindByPath(%q).Path = %q", tt.path, node.Path)
		}
	}

	if FindByPath(root, "/5015/0102") != FindByPath(root, "/5015/0102") {
		t.Error("FindByPath should be stable")
	}
	if FindByPath(nil, "/") != nil {
		t.Error("FindByPath(nil, /) should return nil")
	}
}

func TestFindByID(t *testing.T) {
	root := Build(rootEntry, sampleEntries())

	if node := FindByID(root, models.ObjectID{0x50, 0x15, 0x01, 0x02}); node == nil || node.Path != "/5015/0102" {
		t.Errorf("FindByID(50150102) failed")
	}
	if node := FindByID(root, models.ObjectID{1, 2, 3, 4}); node != nil {
		t.Errorf("FindByID(01020304) should return nil")
	}
	if FindByID(nil, models.RootObjectID) != nil {
		t.Error("FindByID(nil, root) should return nil")
	}
}

func TestCountNodes(t *testing.T) {
	if got := CountNodes(Build(rootEntry, sampleEntries())); got != 4 {
		t.Errorf("CountNodes = %d, want 4", got)
	}
	if got := CountNodes(nil); got != 0 {
		t.Errorf("CountNodes(nil) = %d, want 0", got)
	}
}

func TestBuildChildPath(t *testing.T) {
	tests := []struct {
		parent, name, want string
	}{
		{"/", "5015", "/5015"},
		{"/5015", "0102", "/5015/0102"},
	}
	for _, tt := range tests {
		got := BuildChildPath(tt.parent, tt.name)
		if got != tt.want {
			t.Errorf("BuildChildPath(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten(Build(rootEntry, sampleEntries()))
	if len(flat) != 4 {
		t.Errorf("Flatten returned %d nodes, want 4", len(flat))
	}
	for _, path := range []string{"/", "/5015", "/5015/0102", "/0001"} {
		if _, ok := flat[path]; !ok {
			t.Errorf("Flatten missing path %q", path)
		}
	}

	if len(Flatten(nil)) != 0 {
		t.Error("Flatten(nil) should return empty map")
	}
}
