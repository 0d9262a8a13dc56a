package ecs

// Each2 iterates over entities that have both component A and B, in no
// particular order. It walks the smaller store and probes the larger one.
func Each2[A, B any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.data {
		if a, ok := sa.data[id]; ok {
			fn(id, a, b)
		}
	}
}

// Query2 is Each2 over the stores of two registered types in w.
func Query2[A, B any](w *World, fn func(EntityID, *A, *B)) {
	Each2(StoreOf[A](w), StoreOf[B](w), fn)
}
