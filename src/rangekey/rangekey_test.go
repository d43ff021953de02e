package rangekey

import "testing"

func TestCloneDeepCopiesKey(t *testing.T) {
	key := []byte{1, 2, 3}
	r := R{Offset: 10, Size: 20, Key: key}

	clone := r.Clone()
	key[0] = 99

	assertEqual(t, byte(1), clone.Key[0], "mutating the original key must not affect the clone")
	assertEqual(t, int64(10), clone.Offset, "")
}

func TestCloneOfZeroLengthKey(t *testing.T) {
	r := R{}
	clone := r.Clone()
	assertEqual(t, 0, len(clone.Key), "")
}

func TestIsLeaf(t *testing.T) {
	leaf := R{}
	assertEqual(t, true, leaf.IsLeaf(), "")

	branch := R{Flags: IsChild}
	assertEqual(t, false, branch.IsLeaf(), "")
}

func TestPageNumber(t *testing.T) {
	pageSize := int64(4096)
	r := R{Flags: IsChild, Offset: 3 * pageSize}
	assertEqual(t, uint32(4), r.PageNumber(pageSize), "offset 3*pageSize names the 4th (1-based) page")
}

func assertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected == actual {
		return
	}
	if msg != "" {
		t.Errorf("expected (%+v), got (%+v): %s", expected, actual, msg)
	} else {
		t.Errorf("expected (%+v), got (%+v)", expected, actual)
	}
}
