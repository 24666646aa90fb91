package state

// Movement is the two state tracker for a blind: idle, or moving toward a
// commanded target on the cloud scale. Construct values with Idle or
// MovingTo so that a moving state always carries its target.
type Movement struct {
	moving bool
	target int
}

func Idle() Movement {
	return Movement{}
}

func MovingTo(target int) Movement {
	return Movement{moving: true, target: target}
}

func (m Movement) Moving() bool {
	return m.moving
}

// Target returns the cloud scale target position, valid only while moving.
func (m Movement) Target() (int, bool) {
	return m.target, m.moving
}
