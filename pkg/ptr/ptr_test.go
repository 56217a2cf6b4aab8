package ptr_test

import (
	"testing"

	"ytbatch/pkg/ptr"
)

func TestDeref(t *testing.T) {
	t.Parallel()

	limit := 5
	if got := ptr.Deref(&limit); got != 5 {
		t.Errorf("Deref(&5) = %d, want 5", got)
	}

	var unset *int
	if got := ptr.Deref(unset); got != 0 {
		t.Errorf("Deref(nil) = %d, want 0", got)
	}

	var title *string
	if got := ptr.Deref(title); got != "" {
		t.Errorf("Deref(nil string) = %q, want empty", got)
	}
}
