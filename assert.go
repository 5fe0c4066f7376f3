package cgc

import "testing"

// assertCode checks that an error carries the expected interface code.
func assertCode(t *testing.T, expected Code, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected code %v, but got no error", expected)
	}
	if got := CodeOf(err); got != expected {
		t.Fatalf("expected code %v, but got %v (%v)", expected, got, err)
	}
}

// assertNoError fails the test on any error.
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertRegsEqual checks if two register sets are equal.
func assertRegsEqual(t *testing.T, expected, actual []uint32) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Errorf("Expected length %d, but got %d", len(expected), len(actual))
		return
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf("Register %d: expected %v, but got %v", i, expected[i], actual[i])
			return
		}
	}
}
