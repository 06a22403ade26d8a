package model

import (
	"encoding/json"
	"testing"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in   string
		want Capability
	}{
		{"intake", CapabilityIntake},
		{"classification", CapabilityClassification},
		{"resolution", CapabilityResolution},
		{"escalation", CapabilityEscalation},
		{"planning", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseCapability(tt.in); got != tt.want {
			t.Errorf("ParseCapability(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolvePreferredModel(t *testing.T) {
	r := NewDefaultRegistry()

	if got := r.Resolve(CapabilityResolution); got != "claude-sonnet" {
		t.Errorf("Resolve(resolution) = %q, want claude-sonnet", got)
	}
	if got := r.Resolve(CapabilityIntake); got != "claude-haiku" {
		t.Errorf("Resolve(intake) = %q, want claude-haiku", got)
	}
	// Unknown capability falls back to the default model.
	if got := r.Resolve(Capability("summarizing")); got != "llama3.2" {
		t.Errorf("Resolve(unknown) = %q, want llama3.2", got)
	}
}

func TestGetFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(CapabilityResolution)
	want := []string{"claude-sonnet", "claude-haiku", "qwen"}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestSetAndGetEndpoint(t *testing.T) {
	r := NewRegistry(nil, nil)

	if ep := r.GetEndpoint("custom"); ep != nil {
		t.Fatal("expected nil endpoint before SetEndpoint")
	}

	r.SetEndpoint("custom", &EndpointConfig{Provider: "openai", Model: "gpt-4o-mini"})
	ep := r.GetEndpoint("custom")
	if ep == nil || ep.Provider != "openai" {
		t.Fatalf("GetEndpoint = %+v, want openai endpoint", ep)
	}
}

func TestRegistryJSONRoundTrip(t *testing.T) {
	r := NewDefaultRegistry()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Registry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := decoded.Resolve(CapabilityEscalation); got != r.Resolve(CapabilityEscalation) {
		t.Errorf("decoded Resolve(escalation) = %q, want %q", got, r.Resolve(CapabilityEscalation))
	}
}

func TestFromConfigAndMerge(t *testing.T) {
	cfg := &RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"resolution": {Preferred: []string{"local"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"local": {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "llama3.2"},
		},
		Defaults: &DefaultsConfig{Model: "local"},
	}

	r := FromConfig(cfg)
	if got := r.Resolve(CapabilityResolution); got != "local" {
		t.Errorf("Resolve(resolution) = %q, want local", got)
	}
	if got := r.Resolve(CapabilityIntake); got != "local" {
		t.Errorf("Resolve(intake) = %q, want default local", got)
	}

	r.MergeFromConfig(&RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"intake": {Preferred: []string{"fast"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"fast": {Provider: "anthropic", Model: "claude-haiku-3-5-20241022"},
		},
	})
	if got := r.Resolve(CapabilityIntake); got != "fast" {
		t.Errorf("after merge Resolve(intake) = %q, want fast", got)
	}
	// Merge does not clobber untouched capabilities.
	if got := r.Resolve(CapabilityResolution); got != "local" {
		t.Errorf("after merge Resolve(resolution) = %q, want local", got)
	}
}
