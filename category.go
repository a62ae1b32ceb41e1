package ensemble

// AnalysisCategory identifies one clinical problem category an analysis
// request can ask about. The set is closed: routing tables and provider
// specializations are keyed by it.
type AnalysisCategory string

// Known analysis categories
const (
	CategoryDrugInteraction        AnalysisCategory = "drug_interaction"
	CategoryContraindication       AnalysisCategory = "contraindication"
	CategoryDosageAdjustment       AnalysisCategory = "dosage_adjustment"
	CategoryTherapeuticRedundancy  AnalysisCategory = "therapeutic_redundancy"
	CategorySideEffectRisk         AnalysisCategory = "side_effect_risk"
	CategoryElderlyAppropriateness AnalysisCategory = "elderly_appropriateness"
	CategoryAdherenceOptimization  AnalysisCategory = "adherence_optimization"
	CategoryCostOptimization       AnalysisCategory = "cost_optimization"
)

// String returns the string representation of the category
func (c AnalysisCategory) String() string {
	return string(c)
}

// IsValid returns true if the category is part of the closed set
func (c AnalysisCategory) IsValid() bool {
	switch c {
	case CategoryDrugInteraction, CategoryContraindication,
		CategoryDosageAdjustment, CategoryTherapeuticRedundancy,
		CategorySideEffectRisk, CategoryElderlyAppropriateness,
		CategoryAdherenceOptimization, CategoryCostOptimization:
		return true
	default:
		return false
	}
}

// AllCategories returns every known category in a fixed, stable order.
func AllCategories() []AnalysisCategory {
	return []AnalysisCategory{
		CategoryDrugInteraction,
		CategoryContraindication,
		CategoryDosageAdjustment,
		CategoryTherapeuticRedundancy,
		CategorySideEffectRisk,
		CategoryElderlyAppropriateness,
		CategoryAdherenceOptimization,
		CategoryCostOptimization,
	}
}
