// Package ptr provides helper functions for creating pointers to values.
package ptr

// Bool returns a pointer to the given bool value.
func Bool(b bool) *bool { return &b }
