package trafficlight

import "context"

type phaseKeyType string

const (
	phaseKey phaseKeyType = "phase"
)

type crossingKeyType string

const (
	crossingKey crossingKeyType = "crossing"
)

func withPhase(ctx context.Context, p Phase) context.Context {
	return context.WithValue(ctx, phaseKey, p)
}

func withCrossing(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, crossingKey, n)
}
