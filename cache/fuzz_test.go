package cache

import "testing"

// Page must agree with integer division for any page size, and GetItem on an
// empty model must return the placeholder without panicking.
func FuzzModel_PageAndPlaceholder(f *testing.F) {
	f.Add(0, 10)
	f.Add(9, 10)
	f.Add(10, 10)
	f.Add(1<<30, 7)
	f.Add(12345, 1)

	f.Fuzz(func(t *testing.T, position, pageSize int) {
		if position < 0 || pageSize <= 0 {
			t.Skip()
		}
		m := New[string, string](Options[string]{PageSize: pageSize, Placeholder: "?"})
		if got, want := m.Page(position), position/pageSize; got != want {
			t.Fatalf("Page(%d) with size %d = %d, want %d", position, pageSize, got, want)
		}
		if got := m.GetItem(position); got != "?" {
			t.Fatalf("GetItem on empty model returned %q", got)
		}
	})
}
