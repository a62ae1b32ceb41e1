package ensemble

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// LoadBalancer picks one provider from the currently-operational subset
// when no category-specific mapping applies.
//
// The round-robin cursor is the only mutable state and is an atomic
// counter: many requests select concurrently and must never observe a torn
// update. Weighted selection is stateless per call (one uniform draw over
// cumulative sums in fixed kind order).
type LoadBalancer struct {
	mode    BalancingMode
	weights map[ProviderKind]int

	cursor atomic.Uint64
}

// NewLoadBalancer builds a balancer for the given mode. The weight table
// must already be validated (Config.Validate enforces full coverage and
// the sum of 100 at startup).
func NewLoadBalancer(mode BalancingMode, weights map[ProviderKind]int) (*LoadBalancer, error) {
	switch mode {
	case BalanceRoundRobin, BalanceWeighted, BalanceAdaptive:
	default:
		return nil, fmt.Errorf("%w: unknown load_balancing mode '%s'", ErrInvalidConfig, mode)
	}
	return &LoadBalancer{mode: mode, weights: weights}, nil
}

// Mode returns the configured balancing mode.
func (lb *LoadBalancer) Mode() BalancingMode {
	return lb.mode
}

// Select picks one provider from the operational list, which callers build
// in AllProviderKinds order. Returns ErrNoProviderAvailable when the list
// is empty.
func (lb *LoadBalancer) Select(operational []Provider) (Provider, error) {
	if len(operational) == 0 {
		return nil, ErrNoProviderAvailable
	}

	switch lb.mode {
	case BalanceWeighted:
		return lb.selectWeighted(operational)
	case BalanceAdaptive:
		return lb.selectAdaptive(operational)
	default:
		return lb.selectRoundRobin(operational), nil
	}
}

// selectRoundRobin advances the shared cursor by one and indexes the
// operational list modulo its length. The first selection from a fresh
// balancer returns operational[0].
func (lb *LoadBalancer) selectRoundRobin(operational []Provider) Provider {
	n := lb.cursor.Add(1) - 1
	return operational[int(n%uint64(len(operational)))]
}

// selectWeighted restricts the static weights to the operational subset,
// computes cumulative sums in fixed kind order, and draws uniformly in
// [1, total].
func (lb *LoadBalancer) selectWeighted(operational []Provider) (Provider, error) {
	byKind := make(map[ProviderKind]Provider, len(operational))
	for _, p := range operational {
		byKind[p.Kind()] = p
	}

	type rangeEnd struct {
		provider Provider
		upto     int
	}
	cumulative := make([]rangeEnd, 0, len(operational))
	total := 0
	for _, kind := range AllProviderKinds() {
		p, ok := byKind[kind]
		if !ok {
			continue
		}
		w := lb.weights[kind]
		if w <= 0 {
			continue
		}
		total += w
		cumulative = append(cumulative, rangeEnd{provider: p, upto: total})
	}

	// All operational providers carry zero weight: nothing selectable.
	if total == 0 {
		return nil, ErrNoProviderAvailable
	}

	draw := rand.Intn(total) + 1
	for _, r := range cumulative {
		if draw <= r.upto {
			return r.provider, nil
		}
	}
	// Unreachable: draw <= total == last upto.
	return cumulative[len(cumulative)-1].provider, nil
}

// selectAdaptive is the extension point for latency/error-rate biased
// selection. No metric scheme is implemented yet; it delegates to weighted
// selection so the mode is safe to configure today.
func (lb *LoadBalancer) selectAdaptive(operational []Provider) (Provider, error) {
	return lb.selectWeighted(operational)
}
