package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const DefaultReconnectDelay = 5 * time.Second

// ReconnectPolicy is the retry rule shared by every connector: a fixed delay
// after each failure, no backoff, no jitter, no retry limit.
type ReconnectPolicy struct {
	Delay time.Duration
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: DefaultReconnectDelay}
}

// Wait blocks for the delay. It returns ctx.Err() if the wait was cancelled,
// in which case no reconnect must follow.
func (p ReconnectPolicy) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AuthPolicy decides what happens once token acquisition is exhausted.
type AuthPolicy int

const (
	// AuthDisable parks the connector in the disabled phase until restart.
	AuthDisable AuthPolicy = iota
	// AuthRetry waits the reconnect delay and authenticates again, forever.
	AuthRetry
)

func ParseAuthPolicy(s string) (AuthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disable":
		return AuthDisable, nil
	case "retry":
		return AuthRetry, nil
	default:
		return AuthDisable, fmt.Errorf("unknown auth policy %q", s)
	}
}

func (p AuthPolicy) String() string {
	if p == AuthRetry {
		return "retry"
	}
	return "disable"
}
