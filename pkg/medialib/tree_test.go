package medialib

import (
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/replayclipper/pkg/mocks"
)

func libraryFS() *mocks.FileSystem {
	m := mocks.NewFileSystem()
	for _, p := range []string{
		"lib/b.mp4",
		"lib/A.MKV",
		"lib/notes.txt",
		"lib/.hidden.mp4",
		"lib/.cache/x.mp4",
		"lib/shows/ep2.webm",
		"lib/shows/ep1.webm",
		"lib/shows/cover.jpg",
		"lib/empty/readme.md",
		"lib/alpha/clip.mov",
	} {
		m.WriteFile(filepath.FromSlash(p), []byte{0})
	}
	return m
}

func TestScan_OrderAndFiltering(t *testing.T) {
	tree, err := Scan(libraryFS(), "lib", nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		filepath.Join("lib", "alpha", "clip.mov"),
		filepath.Join("lib", "shows", "ep1.webm"),
		filepath.Join("lib", "shows", "ep2.webm"),
		filepath.Join("lib", "A.MKV"),
		filepath.Join("lib", "b.mp4"),
	}
	if got := tree.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files() = %v, want %v", got, want)
	}
	if tree.Len() != 5 {
		t.Errorf("expected 5 files, got %d", tree.Len())
	}
}

func TestScan_DirectoriesFirst(t *testing.T) {
	tree, err := Scan(libraryFS(), "lib", nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	var names []string
	for _, c := range tree.Root.Children {
		names = append(names, c.Name)
	}
	want := []string{"alpha", "shows", "A.MKV", "b.mp4"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("root children = %v, want %v", names, want)
	}
	if tree.Root.Name != "lib" || !tree.Root.IsDir {
		t.Errorf("unexpected root %+v", tree.Root)
	}
}

func TestScan_CustomExtensions(t *testing.T) {
	tree, err := Scan(libraryFS(), "lib", []string{"txt", ".JPG"})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := []string{
		filepath.Join("lib", "shows", "cover.jpg"),
		filepath.Join("lib", "notes.txt"),
	}
	if got := tree.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestScan_Walk(t *testing.T) {
	tree, _ := Scan(libraryFS(), "lib", nil)

	depths := map[string]int{}
	tree.Walk(func(n *Node, depth int) bool {
		depths[n.Name] = depth
		return n.Name != "shows"
	})

	if depths["lib"] != 0 || depths["alpha"] != 1 || depths["clip.mov"] != 2 {
		t.Errorf("unexpected depths: %v", depths)
	}
	if _, ok := depths["ep1.webm"]; ok {
		t.Error("expected children of 'shows' to be skipped")
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(mocks.NewFileSystem(), "nowhere", nil); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestScan_ReadDirError(t *testing.T) {
	m := libraryFS()
	boom := errors.New("permission denied")
	m.ReadDirFunc = func(path string) ([]fs.DirEntry, error) {
		return nil, boom
	}
	if _, err := Scan(m, "lib", nil); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestTree_WalkNil(t *testing.T) {
	var tree *Tree
	tree.Walk(func(*Node, int) bool {
		t.Error("unexpected visit")
		return true
	})
}
