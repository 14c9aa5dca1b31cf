package timeline

// ToSeconds expresses every event in seconds * 10^TimeMultiplier() and
// switches the timeline unit to Second. The addressable range becomes
// [Init(), End()], so events falling outside it are trimmed and reported.
// Events inside it survive a ToSamples afterwards up to rounding. No-op on
// Second timelines.
func (t *Timeline) ToSeconds() (Warnings, error) {
	const op = "Timeline.ToSeconds"
	if t.unit.Kind() == Second {
		return nil, nil
	}
	if !t.IsUniform() {
		return nil, newError(KindInvalidValue, op, "a non-uniform timeline has no sampling rate to convert with")
	}
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for _, id := range sortedKeys(n.events) {
			if err := n.events[id].ToSeconds(n.samplingRate, n.timeMultiplier); err != nil {
				return err
			}
		}
		n.unit = SecondUnit(n.timeMultiplier)
		n.trimEvents().warn(op, &ws, nil)
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// ToSamples expresses every event in samples and switches the timeline unit
// to Sample, trimming to [0, Length()]. Rounding to whole samples may make
// events touch; the call fails if that breaks the overlap rules. No-op on
// Sample timelines.
func (t *Timeline) ToSamples() (Warnings, error) {
	const op = "Timeline.ToSamples"
	if t.unit.Kind() == Sample {
		return nil, nil
	}
	if !t.IsUniform() {
		return nil, newError(KindInvalidValue, op, "a non-uniform timeline has no sampling rate to convert with")
	}
	var ws Warnings
	err := t.mutate(func(n *Timeline) error {
		ws = nil
		for _, id := range sortedKeys(n.events) {
			if err := n.events[id].ToSamples(n.samplingRate); err != nil {
				return err
			}
		}
		n.unit = SampleUnit()
		n.trimEvents().warn(op, &ws, nil)
		return n.checkOverlapConflicts(op)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}
