package btreewalk

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"

	"esedb/src/btreenode"
	"esedb/src/esedberr"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
	"esedb/src/testhelper"
)

// buildFanTree builds a root branch page fanning out to three leaf pages,
// each holding two keyed values, all keys globally ascending.
func buildFanTree(t *testing.T) *pagestore.Store {
	t.Helper()
	b := testhelper.NewFileBuilder(4096)
	b.AddPage(1, testhelper.FlagIsRoot, []testhelper.Slot{
		testhelper.BranchSlot([]byte("a"), 2),
		testhelper.BranchSlot([]byte("c"), 3),
		testhelper.BranchSlot([]byte("e"), 4),
	})
	b.AddPage(2, testhelper.FlagIsLeaf, []testhelper.Slot{
		testhelper.LeafSlot([]byte("a"), []byte("1")),
		testhelper.LeafSlot([]byte("b"), []byte("2")),
	})
	b.AddPage(3, testhelper.FlagIsLeaf, []testhelper.Slot{
		testhelper.LeafSlot([]byte("c"), []byte("3")),
		testhelper.LeafSlot([]byte("d"), []byte("4")),
	})
	b.AddPage(4, testhelper.FlagIsLeaf, []testhelper.Slot{
		testhelper.LeafSlot([]byte("e"), []byte("5")),
		testhelper.LeafSlot([]byte("f"), []byte("6")),
	})
	path := b.WriteTempFile(t)

	store, err := pagestore.Open(path, 8, nil)
	if err != nil {
		t.Fatalf("pagestore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newWalker(store *pagestore.Store, abort *atomic.Bool) *Engine[rangekey.R] {
	root := pagestore.ChildRange(1, store.PageSize(), -1, nil)
	readNode := func(r rangekey.R) (*btreenode.Node, error) {
		return btreenode.Read(store, r, pagestore.NoCache|pagestore.IgnoreCache)
	}
	identity := func(leaf rangekey.R) (rangekey.R, error) { return leaf, nil }
	return New[rangekey.R](root, readNode, identity, abort, 4)
}

func drain(t *testing.T, w *Engine[rangekey.R]) ([]string, error) {
	t.Helper()
	var keys []string
	for {
		r, err := w.Next()
		if err != nil {
			return keys, err
		}
		keys = append(keys, string(r.Key))
	}
}

func TestKeyOrderIsNonDecreasing(t *testing.T) {
	store := buildFanTree(t)
	w := newWalker(store, nil)

	keys, err := drain(t, w)
	if !errors.Is(err, esedberr.ErrEndOfTable) {
		t.Fatalf("expected ErrEndOfTable, got %v", err)
	}

	want := []string{"a", "b", "c", "d", "e", "f"}
	if len(keys) != len(want) {
		t.Fatalf("got %v keys, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q (full: %v)", i, keys[i], want[i], keys)
		}
	}
}

func TestTerminalErrorPersists(t *testing.T) {
	store := buildFanTree(t)
	w := newWalker(store, nil)

	_, err := drain(t, w)
	if !errors.Is(err, esedberr.ErrEndOfTable) {
		t.Fatalf("expected ErrEndOfTable, got %v", err)
	}

	// Calling Next again after end-of-table must return the same error,
	// not panic or restart the walk.
	_, err2 := w.Next()
	if !errors.Is(err2, esedberr.ErrEndOfTable) {
		t.Fatalf("expected ErrEndOfTable again, got %v", err2)
	}
}

func TestAbortStopsWithinOneLeaf(t *testing.T) {
	store := buildFanTree(t)
	abort := &atomic.Bool{}
	w := newWalker(store, abort)

	r, err := w.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	first := string(r.Key)

	abort.Store(true)

	_, err = w.Next()
	if !errors.Is(err, esedberr.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}

	if first != "a" {
		t.Fatalf("expected first key 'a', got %q", first)
	}
}

func TestStackDepthBound(t *testing.T) {
	store := buildFanTree(t)
	w := newWalker(store, nil)

	maxFanout := 3 // the root's widest fan-out in this fixture
	height := 2    // root + one leaf level
	bound := height + maxFanout

	for {
		_, err := w.Next()
		if err != nil {
			break
		}
		if w.StackDepth() > bound {
			t.Fatalf("stack depth %d exceeded bound %d", w.StackDepth(), bound)
		}
	}
}

func TestNewSeededResumesAscendingScan(t *testing.T) {
	store := buildFanTree(t)

	// Seed directly at leaf page 3 ("c","d"), with page 4's subtree
	// queued as the only pending node, skipping page 2 entirely.
	readNode := func(r rangekey.R) (*btreenode.Node, error) {
		return btreenode.Read(store, r, pagestore.NoCache|pagestore.IgnoreCache)
	}
	leafNode, err := readNode(pagestore.ChildRange(3, store.PageSize(), -1, nil))
	if err != nil {
		t.Fatalf("readNode(page 3): %v", err)
	}
	seedLeaves := make([]rangekey.R, len(leafNode.Ranges))
	for i, r := range leafNode.Ranges {
		seedLeaves[len(leafNode.Ranges)-1-i] = r
	}
	seedNodes := []rangekey.R{pagestore.ChildRange(4, store.PageSize(), -1, nil)}

	identity := func(leaf rangekey.R) (rangekey.R, error) { return leaf, nil }
	w := NewSeeded[rangekey.R](seedNodes, seedLeaves, readNode, identity, nil)

	keys, err := drain(t, w)
	if !errors.Is(err, esedberr.ErrEndOfTable) {
		t.Fatalf("expected ErrEndOfTable, got %v", err)
	}
	want := []string{"c", "d", "e", "f"}
	if len(keys) != len(want) || !bytes.Equal([]byte(keys[0]), []byte(want[0])) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}
