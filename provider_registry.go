package ensemble

// ProviderKind represents a unique provider identity.
// Using a typed constant prevents typos and provides compile-time safety.
//
// The set is closed and small: the three clinical models deployed by the
// platform. Every routing table, weight table and failover chain is keyed
// by this type.
type ProviderKind string

// Known provider kinds
const (
	// KindBioMistral is the BioMistral-7B clinical model
	KindBioMistral ProviderKind = "biomistral"

	// KindHippoMistral is the HippoMistral geriatric-focused model
	KindHippoMistral ProviderKind = "hippomistral"

	// KindMedFound is the MedFound-LLaMA3 model
	KindMedFound ProviderKind = "medfound"
)

// String returns the string representation of the provider kind
func (k ProviderKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known provider
func (k ProviderKind) IsValid() bool {
	switch k {
	case KindBioMistral, KindHippoMistral, KindMedFound:
		return true
	default:
		return false
	}
}

// AllProviderKinds returns every known kind in the fixed iteration order
// shared by failover, weighted selection and the sequential ensemble
// strategy. Callers must not rely on any other ordering.
func AllProviderKinds() []ProviderKind {
	return []ProviderKind{KindBioMistral, KindHippoMistral, KindMedFound}
}
