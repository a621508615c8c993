package payments

// Coalesce returns the first non-nil value. Merging an incoming field with
// its persisted counterpart is always Coalesce(incoming, persisted), so a set
// field can never be cleared by a request that omits it.
func Coalesce[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
