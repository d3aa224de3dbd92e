package utils

// Ptr returns a pointer to a copy of v, for optional columns such as next-match slots.
func Ptr[T any](v T) *T {
	return &v
}
