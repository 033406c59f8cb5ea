// Package routing maps a classified capability plus context flags to a
// provider model and request configuration.
package routing

import (
	"fast3r/internal/config"
	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// Rule names which policy branch produced a Selection.
type Rule string

const (
	RuleExtendedReasoning Rule = "extended_reasoning"
	RuleAttachedImage     Rule = "attached_image"
	RuleLiveInfo          Rule = "live_info"
	RuleDefault           Rule = "default"
	RuleDedicated         Rule = "dedicated"
)

// Flags is the context the ranking looks at.
type Flags struct {
	UseExtendedReasoning bool
	HasAttachedImage     bool
	NeedsLiveInfo        bool
}

// Selection is the model and request shape for one provider call.
type Selection struct {
	Model          string
	Rule           Rule
	EnableSearch   bool
	ThinkingBudget int32 // 0 = provider default
}

// Policy selects models. It is a total function of (capability, flags).
type Policy struct {
	models         config.ModelsConfig
	thinkingBudget int32
}

// NewPolicy builds a policy over the configured model lineup.
func NewPolicy(models config.ModelsConfig, thinkingBudget int) *Policy {
	return &Policy{models: models, thinkingBudget: int32(thinkingBudget)}
}

// Select returns exactly one Selection. Chat and image analysis are ranked,
// first match wins:
//  1. extended reasoning -> pro model with the fixed thinking budget, no tools
//  2. attached image     -> pro (multimodal) model, no tools
//  3. needs live info    -> balanced model with search grounding
//  4. default            -> fast model, no tools
//
// Every other capability uses its dedicated model and ignores the flags.
func (p *Policy) Select(c types.Capability, f Flags) Selection {
	var s Selection
	switch c {
	case types.CapabilityGenerateImage:
		s = Selection{Model: p.models.Image, Rule: RuleDedicated}
	case types.CapabilityGenerateVideo:
		s = Selection{Model: p.models.Video, Rule: RuleDedicated}
	case types.CapabilityTranscribe:
		s = Selection{Model: p.models.Transcribe, Rule: RuleDedicated}
	case types.CapabilityEditImage:
		s = Selection{Model: p.models.ImageEdit, Rule: RuleDedicated}
	default:
		s = p.rank(f)
	}
	logging.RoutingDebug("select %s flags=%+v -> model=%s rule=%s search=%v budget=%d",
		c, f, s.Model, s.Rule, s.EnableSearch, s.ThinkingBudget)
	return s
}

func (p *Policy) rank(f Flags) Selection {
	switch {
	case f.UseExtendedReasoning:
		return Selection{Model: p.models.Pro, Rule: RuleExtendedReasoning, ThinkingBudget: p.thinkingBudget}
	case f.HasAttachedImage:
		return Selection{Model: p.models.Pro, Rule: RuleAttachedImage}
	case f.NeedsLiveInfo:
		return Selection{Model: p.models.Balanced, Rule: RuleLiveInfo, EnableSearch: true}
	default:
		return Selection{Model: p.models.Fast, Rule: RuleDefault}
	}
}

// AdviceModel is the model used for structured job-settings advice.
func (p *Policy) AdviceModel() string {
	return p.models.Advice
}
