package ptr

func To[T any](v T) *T {
	return &v
}

// UnsetOrEqual reports whether p is nil or points at a value equal to v.
func UnsetOrEqual[T comparable](p *T, v T) bool {
	return p == nil || *p == v
}
