// Package test holds the tiny assertion helpers shared by the package
// tests.
package test

import "testing"

func Equal[T comparable](t *testing.T, expected, actual T) bool {
	t.Helper()

	if expected != actual {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %v\n"+
			"Actual: %v", expected, actual)
		return false
	}

	return true
}

func True(t *testing.T, ok bool, msg string) bool {
	t.Helper()

	if !ok {
		t.Error(msg)
		return false
	}

	return true
}
