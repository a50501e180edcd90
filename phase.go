package trafficlight

import "fmt"

// Phase is a traffic light phase.
type Phase string

const (
	PhaseRed   Phase = "red"
	PhaseGreen Phase = "green"
)

func (p Phase) String() string {
	return string(p)
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseRed, PhaseGreen:
		return true
	}
	return false
}

// Next returns the phase that follows p. Red and green alternate; there is no
// other transition.
func (p Phase) Next() Phase {
	switch p {
	case PhaseRed:
		return PhaseGreen
	case PhaseGreen:
		return PhaseRed
	default:
		panic(fmt.Sprintf("unknown phase: %q", string(p)))
	}
}

// UnmarshalText accepts "red" or "green".
func (p *Phase) UnmarshalText(b []byte) error {
	v := Phase(b)
	if !v.Valid() {
		return fmt.Errorf("invalid phase %q: must be red or green", string(b))
	}
	*p = v
	return nil
}
