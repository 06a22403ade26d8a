// Package model provides capability-based model selection for workflow
// steps. Instead of hardcoding model names, agents specify capabilities
// (intake, classification, resolution, escalation) and the registry
// resolves them to available models with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-haiku", agents specify "intake" or
// "resolution".
type Capability string

const (
	// CapabilityIntake is for ticket normalization and summarization.
	CapabilityIntake Capability = "intake"

	// CapabilityClassification is for issue typing and urgency triage.
	CapabilityClassification Capability = "classification"

	// CapabilityResolution is for answer drafting from knowledge base hits.
	CapabilityResolution Capability = "resolution"

	// CapabilityEscalation is for human handoff summaries.
	CapabilityEscalation Capability = "escalation"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityIntake, CapabilityClassification, CapabilityResolution, CapabilityEscalation:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
