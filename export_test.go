package trafficlight

import "time"

func (c *PhaseCycler) HoldDuration() time.Duration {
	return c.holdDuration()
}

var WithPhase = withPhase

var WithCrossing = withCrossing

var NewExpectCodeFunc = newExpectCodeFunc
