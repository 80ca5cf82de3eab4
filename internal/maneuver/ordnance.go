package maneuver

// Ordnance holds the single result of a maneuver or of a whole flight.
// Embed it next to Base to turn a maneuver into an ordnance maneuver.
type Ordnance[T any] struct {
	value  T
	loaded bool
}

// Load sets the result. Loading again replaces the previous value.
func (o *Ordnance[T]) Load(v T) {
	o.value = v
	o.loaded = true
}

// Loaded reports whether a result has been set.
func (o *Ordnance[T]) Loaded() bool { return o.loaded }

// Deploy returns the result or ErrNoOrdnance if none was loaded.
func (o *Ordnance[T]) Deploy() (T, error) {
	if !o.loaded {
		var zero T
		return zero, ErrNoOrdnance
	}
	return o.value, nil
}
