package helpers

// ToPtr returns a pointer to a copy of v, for the optional fields of the
// settings structs.
func ToPtr[T any](v T) *T {
	return &v
}
