package producer

import (
	"github.com/randalmurphal/llmkit/model"
)

// Kind is the kind of generation work being requested.
// It determines which model tier is appropriate.
type Kind string

const (
	// Planning a feature layout needs reasoning.
	KindPlan Kind = "plan"

	// Standard generation work.
	KindGenerate Kind = "generate"
	KindRevise   Kind = "revise"

	// Mechanical rewrites can use smaller models.
	KindRename    Kind = "rename"
	KindSummarize Kind = "summarize"
)

// DefaultModelMap maps generation kinds to default models.
var DefaultModelMap = map[Kind]model.ModelName{
	KindPlan:      model.ModelOpus,
	KindGenerate:  model.ModelSonnet,
	KindRevise:    model.ModelSonnet,
	KindRename:    model.ModelHaiku,
	KindSummarize: model.ModelHaiku,
}

// TierForKind returns the model tier for a kind of work.
func TierForKind(k Kind) model.Tier {
	switch k {
	case KindPlan:
		return model.TierThinking
	case KindRename, KindSummarize:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector that understands Kind values.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(work any) model.Tier {
			if k, ok := work.(Kind); ok {
				return TierForKind(k)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel returns the model for a kind of work, falling back to the
// tier mapping for kinds missing from DefaultModelMap.
func SelectModel(k Kind) model.ModelName {
	if m, ok := DefaultModelMap[k]; ok {
		return m
	}
	switch TierForKind(k) {
	case model.TierThinking:
		return model.ModelOpus
	case model.TierFast:
		return model.ModelHaiku
	default:
		return model.ModelSonnet
	}
}
