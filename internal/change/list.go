package change

// List records which properties of a model were modified since it was last
// written. Changes are reported in the order they were first tracked so that
// generated update statements are stable.
type List[T comparable] struct {
	seen    map[T]struct{}
	changes []T
}

func NewChanges[T comparable]() List[T] {
	return List[T]{
		seen: make(map[T]struct{}),
	}
}

func (b *List[T]) GetChanges() []T {
	return append([]T(nil), b.changes...)
}

// ClearChanges is only supposed to be called by the repository implementations.
func (b *List[T]) ClearChanges() {
	b.seen = make(map[T]struct{})
	b.changes = nil
}

func (b *List[T]) TrackChange(key T) {
	if _, ok := b.seen[key]; ok {
		return
	}

	b.seen[key] = struct{}{}
	b.changes = append(b.changes, key)
}

func (b *List[T]) HasChanges() bool {
	return len(b.changes) > 0
}
