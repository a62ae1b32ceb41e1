package ensemble

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator is the top-level entry point of the ensemble router. Given
// an analysis request it selects a strategy from the category count,
// invokes providers (directly, via the load balancer, or via failover) and
// reconciles their responses through the Combiner.
//
// One orchestrator instance serves many concurrent Process calls. The only
// shared mutable state is the balancer's round-robin cursor and each
// provider's operational flag, both atomic.
type Orchestrator struct {
	cfg       *Config
	providers map[ProviderKind]Provider
	balancer  *LoadBalancer
	failover  *FailoverController
	combiner  *Combiner
}

// NewOrchestrator builds an orchestrator over the given provider set.
// A nil cfg selects the embedded default configuration. Invalid
// configuration or an unusable provider set is a fatal startup error.
func NewOrchestrator(cfg *Config, providers []Provider) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: at least one provider is required", ErrInvalidConfig)
	}
	byKind := make(map[ProviderKind]Provider, len(providers))
	for _, p := range providers {
		kind := p.Kind()
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: provider with unknown kind '%s'", ErrInvalidConfig, kind)
		}
		if _, dup := byKind[kind]; dup {
			return nil, fmt.Errorf("%w: duplicate provider for kind '%s'", ErrInvalidConfig, kind)
		}
		byKind[kind] = p
	}

	balancer, err := NewLoadBalancer(cfg.LoadBalancing, cfg.Weights)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:       cfg,
		providers: byKind,
		balancer:  balancer,
		failover:  NewFailoverController(byKind),
		combiner:  NewCombiner(cfg.Vote),
	}, nil
}

// Process runs one orchestrated analysis call. Strategy selection is a
// pure function of the request's category count:
//
//   - 1 category: route to the designated provider, failing over as needed
//   - 2-3 categories: split into sub-requests, group by provider, union
//   - more: the configured ensemble strategy (sequential, parallel, vote)
//
// Every exit path stamps ProcessingTimeMs with the wall-clock duration of
// the whole call. Cancelling ctx cancels the in-flight provider
// invocations of this request only.
func (o *Orchestrator) Process(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Requests are immutable: assigning a missing ID happens on a copy.
	work := *req
	if work.RequestID == "" {
		work.RequestID = uuid.NewString()
	}

	var (
		resp     *AnalysisResponse
		err      error
		strategy string
	)
	switch n := len(work.Categories); {
	case n == 1:
		strategy = "category"
		resp, err = o.processSingle(ctx, &work)
	case n <= 3:
		strategy = "split"
		resp, err = o.processSplit(ctx, &work)
	default:
		strategy = string(o.cfg.FallbackStrategy)
		resp, err = o.processEnsemble(ctx, &work)
	}

	elapsed := time.Since(start)
	processDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err != nil {
		return nil, err
	}
	return finalize(resp, work.RequestID, elapsed), nil
}

// Metrics aggregates every provider's metrics plus orchestrator-level
// fields. Best effort: it never fails.
func (o *Orchestrator) Metrics() map[string]any {
	available := make([]string, 0, len(o.providers))
	perProvider := make(map[string]any, len(o.providers))
	for _, kind := range AllProviderKinds() {
		p, ok := o.providers[kind]
		if !ok {
			continue
		}
		if p.Operational() {
			available = append(available, kind.String())
		}
		perProvider[kind.String()] = p.Metrics()
	}

	return map[string]any{
		"operational":      len(available) > 0,
		"models_available": available,
		"strategy":         string(o.cfg.FallbackStrategy),
		"load_balancing":   string(o.cfg.LoadBalancing),
		"providers":        perProvider,
	}
}

// processSingle handles the one-category path: the fixed category→kind
// table designates a provider; unmapped categories fall through to the
// load balancer. Non-operational or failing providers fail over until the
// remaining set is exhausted.
func (o *Orchestrator) processSingle(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	category := req.Categories[0]
	exclude := make(map[ProviderKind]bool)

	var p Provider
	if kind, mapped := o.cfg.Routing[category]; mapped {
		cand, ok := o.providers[kind]
		if ok && cand.Operational() {
			p = cand
		} else {
			exclude[kind] = true
			next, err := o.failover.Next(exclude)
			if err != nil {
				return nil, newNoProviderError()
			}
			p = next
		}
	} else {
		selected, err := o.balancer.Select(o.operationalProviders())
		if err != nil {
			return nil, newNoProviderError()
		}
		p = selected
	}

	return o.invokeChain(ctx, p, exclude, req)
}

// invokeChain invokes p and, on failure, repeatedly applies failover until
// a call succeeds or the provider set is exhausted.
func (o *Orchestrator) invokeChain(ctx context.Context, p Provider, exclude map[ProviderKind]bool, req *AnalysisRequest) (*AnalysisResponse, error) {
	prompt := o.promptFor(req)
	for {
		resp, err := o.invoke(ctx, p, prompt, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		exclude[p.Kind()] = true
		next, ferr := o.failover.Next(exclude)
		if ferr != nil {
			return nil, newNoProviderError()
		}
		log.Printf("[ENSEMBLE] request %s: failing over from '%s' to '%s'", req.RequestID, p.Kind(), next.Kind())
		p = next
	}
}

// processSplit handles 2-3 categories: one sub-request per category,
// grouped by their resolved provider. Within a provider the sub-requests
// run sequentially; across providers they run concurrently so no provider
// blocks another. Successful sub-responses are unioned.
func (o *Orchestrator) processSplit(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	type assignment struct {
		kind ProviderKind
		subs []*AnalysisRequest
	}
	var groups []*assignment
	index := make(map[ProviderKind]*assignment)

	for _, category := range req.Categories {
		sub := req.subRequest(category)

		kind, mapped := o.cfg.Routing[category]
		if !mapped {
			selected, err := o.balancer.Select(o.operationalProviders())
			if err != nil {
				// No target for this sub-request; the remaining ones may
				// still produce a result.
				log.Printf("[ENSEMBLE] request %s: no provider for category '%s'", req.RequestID, category)
				continue
			}
			kind = selected.Kind()
		}

		g, ok := index[kind]
		if !ok {
			g = &assignment{kind: kind}
			index[kind] = g
			groups = append(groups, g)
		}
		g.subs = append(g.subs, sub)
	}

	if len(groups) == 0 {
		return nil, newNoProviderError()
	}

	// One goroutine per grouped provider; per-group result slots keep the
	// combination order deterministic.
	results := make([][]*AnalysisResponse, len(groups))
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func(i int, g *assignment) {
			defer wg.Done()
			for _, sub := range g.subs {
				exclude := make(map[ProviderKind]bool)
				p, ok := o.providers[g.kind]
				if !ok || !p.Operational() {
					exclude[g.kind] = true
					next, err := o.failover.Next(exclude)
					if err != nil {
						log.Printf("[ENSEMBLE] request %s: no provider available", sub.RequestID)
						continue
					}
					p = next
				}
				resp, err := o.invokeChain(ctx, p, exclude, sub)
				if err != nil {
					log.Printf("[ENSEMBLE] request %s: sub-request failed: %v", sub.RequestID, err)
					continue
				}
				results[i] = append(results[i], resp)
			}
		}(i, g)
	}
	wg.Wait()

	var responses []*AnalysisResponse
	for _, rs := range results {
		responses = append(responses, rs...)
	}
	if len(responses) == 0 {
		return nil, newNoProviderError()
	}

	return o.combiner.Union(responses)
}

// processEnsemble handles more than three categories with the configured
// strategy.
func (o *Orchestrator) processEnsemble(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	switch o.cfg.FallbackStrategy {
	case StrategySequential:
		return o.ensembleSequential(ctx, req)
	case StrategyVote:
		responses, failures, err := o.fanOut(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(responses) == 0 {
			return nil, o.allFailed(req, failures)
		}
		return o.combiner.Vote(responses)
	default: // StrategyParallel
		responses, failures, err := o.fanOut(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(responses) == 0 {
			return nil, o.allFailed(req, failures)
		}
		return o.combiner.Union(responses)
	}
}

// ensembleSequential tries operational providers in fixed order and
// returns the first success.
func (o *Orchestrator) ensembleSequential(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	prompt := o.promptFor(req)
	for _, kind := range AllProviderKinds() {
		p, ok := o.providers[kind]
		if !ok || !p.Operational() {
			continue
		}
		resp, err := o.invoke(ctx, p, prompt, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ENSEMBLE] request %s: sequential attempt on '%s' failed: %v", req.RequestID, kind, err)
	}
	return nil, newNoProviderError()
}

// fanOut invokes all currently-operational providers concurrently and
// joins on completion of all of them. Individual failures are collected,
// never aborting the batch. An empty operational set short-circuits with
// ErrNoProviderAvailable before any invocation.
func (o *Orchestrator) fanOut(ctx context.Context, req *AnalysisRequest) ([]*AnalysisResponse, []*ProviderError, error) {
	operational := o.operationalProviders()
	if len(operational) == 0 {
		return nil, nil, newNoProviderError()
	}

	prompt := o.promptFor(req)
	responses := make([]*AnalysisResponse, len(operational))
	errs := make([]error, len(operational))

	var wg sync.WaitGroup
	for i, p := range operational {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			responses[i], errs[i] = o.invoke(ctx, p, prompt, req)
		}(i, p)
	}
	wg.Wait()

	var successes []*AnalysisResponse
	var failures []*ProviderError
	for i, p := range operational {
		if errs[i] == nil {
			successes = append(successes, responses[i])
			continue
		}
		failures = append(failures, asProviderFailure(p.Kind(), errs[i]))
	}
	return successes, failures, nil
}

// allFailed logs every per-provider reason and builds the
// all_providers_failed error.
func (o *Orchestrator) allFailed(req *AnalysisRequest, failures []*ProviderError) error {
	for _, f := range failures {
		log.Printf("[ENSEMBLE] request %s: provider '%s' failed (%s): %s", req.RequestID, f.Kind, f.Reason, f.Message)
	}
	return newAllFailedError(failures)
}

// invoke wraps a single provider call with logging and instrumentation.
func (o *Orchestrator) invoke(ctx context.Context, p Provider, prompt string, req *AnalysisRequest) (*AnalysisResponse, error) {
	resp, err := p.Invoke(ctx, prompt, req)
	observeInvocation(p.Kind(), err)
	if err != nil {
		log.Printf("[ENSEMBLE] request %s: provider '%s' failed: %v", req.RequestID, p.Kind(), err)
		return nil, err
	}
	return resp, nil
}

// operationalProviders returns the operational subset in fixed kind order.
func (o *Orchestrator) operationalProviders() []Provider {
	out := make([]Provider, 0, len(o.providers))
	for _, kind := range AllProviderKinds() {
		if p, ok := o.providers[kind]; ok && p.Operational() {
			out = append(out, p)
		}
	}
	return out
}

// promptFor renders the analysis directive handed to providers. Full
// prompt templating (system prompts, few-shot examples) is each provider
// adapter's concern; this is only the category directive.
func (o *Orchestrator) promptFor(req *AnalysisRequest) string {
	names := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		names = append(names, c.String())
	}
	return "Analyze the medication list for: " + strings.Join(names, ", ")
}

// asProviderFailure normalizes any invocation error into a *ProviderError
// for diagnostics.
func asProviderFailure(kind ProviderKind, err error) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	return &ProviderError{
		Kind:    kind,
		Reason:  FailureUnavailable,
		Message: err.Error(),
		Err:     err,
	}
}
