package producer

import (
	"testing"

	"github.com/randalmurphal/llmkit/model"
)

func TestTierForKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want model.Tier
	}{
		{KindPlan, model.TierThinking},
		{KindGenerate, model.TierDefault},
		{KindRevise, model.TierDefault},
		{KindRename, model.TierFast},
		{KindSummarize, model.TierFast},
		{Kind("unknown"), model.TierDefault},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := TierForKind(tt.kind); got != tt.want {
				t.Errorf("TierForKind(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		kind Kind
		want model.ModelName
	}{
		{KindPlan, model.ModelOpus},
		{KindGenerate, model.ModelSonnet},
		{KindRename, model.ModelHaiku},
		{Kind("unknown"), model.ModelSonnet},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := SelectModel(tt.kind); got != tt.want {
				t.Errorf("SelectModel(%s) = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}
}

func TestNewSelector(t *testing.T) {
	t.Run("default behavior", func(t *testing.T) {
		selector := NewSelector()

		if got := selector.Select(KindPlan); got != model.ModelOpus {
			t.Errorf("Select(KindPlan) = %s, want %s", got, model.ModelOpus)
		}
		if got := selector.Select(KindGenerate); got != model.ModelSonnet {
			t.Errorf("Select(KindGenerate) = %s, want %s", got, model.ModelSonnet)
		}
		if got := selector.Select(KindSummarize); got != model.ModelHaiku {
			t.Errorf("Select(KindSummarize) = %s, want %s", got, model.ModelHaiku)
		}
	})

	t.Run("with global override", func(t *testing.T) {
		selector := NewSelector(model.WithGlobalOverride(model.ModelHaiku))

		if got := selector.Select(KindPlan); got != model.ModelHaiku {
			t.Errorf("Select(KindPlan) = %s, want %s", got, model.ModelHaiku)
		}
	})
}
