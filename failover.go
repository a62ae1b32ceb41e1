package ensemble

// FailoverController substitutes an alternate provider when a chosen one is
// unavailable or just failed. Selection is deterministic: the first
// operational provider in AllProviderKinds order that is not excluded wins.
// A chain of sequential attempts applies Next repeatedly, growing the
// exclusion set, until success or exhaustion.
type FailoverController struct {
	providers map[ProviderKind]Provider
}

// NewFailoverController builds a controller over the full provider set.
func NewFailoverController(providers map[ProviderKind]Provider) *FailoverController {
	return &FailoverController{providers: providers}
}

// Next returns the first remaining operational provider whose kind is not
// in the exclusion set. Returns ErrNoProviderAvailable when the remaining
// set is empty.
func (f *FailoverController) Next(exclude map[ProviderKind]bool) (Provider, error) {
	for _, kind := range AllProviderKinds() {
		if exclude[kind] {
			continue
		}
		p, ok := f.providers[kind]
		if !ok || !p.Operational() {
			continue
		}
		return p, nil
	}
	return nil, ErrNoProviderAvailable
}
