package stackengine

import "testing"

func TestPushPopOrder(t *testing.T) {
	s := New[int](4)
	assertEqual(t, true, s.IsEmpty(), "")

	s.Push(1)
	s.Push(2)
	s.Push(3)
	assertEqual(t, 3, s.Len(), "")

	v, ok := s.Pop()
	assertEqual(t, true, ok, "")
	assertEqual(t, 3, v, "pop returns most recently pushed item")

	v, ok = s.Pop()
	assertEqual(t, true, ok, "")
	assertEqual(t, 2, v, "")

	v, ok = s.Pop()
	assertEqual(t, true, ok, "")
	assertEqual(t, 1, v, "")

	_, ok = s.Pop()
	assertEqual(t, false, ok, "pop on an empty stack reports ok=false")
}

func TestDrain(t *testing.T) {
	s := New[string](4)
	s.Push("a")
	s.Push("b")
	s.Drain()
	assertEqual(t, true, s.IsEmpty(), "")
	assertEqual(t, 0, s.Len(), "")
}

func TestPopZeroesSlot(t *testing.T) {
	// Pop must not let a popped element's memory linger in the backing
	// slice (it should be replaced with the zero value so it can be GC'd).
	s := New[*int](2)
	x := 42
	s.Push(&x)
	_, ok := s.Pop()
	assertEqual(t, true, ok, "")
	assertEqual(t, 0, s.Len(), "")
	assertEqual(t, (*int)(nil), s.items[:1][0], "popped slot should hold the zero value")
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
