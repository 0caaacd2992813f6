package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

func TestSynthesizer(t *testing.T) {
	ctx := context.Background()
	mock := &tools.ServiceBreakdown{Source: tools.SourceMock, Services: []tools.ServiceCost{}}
	live := &tools.ServiceBreakdown{Source: tools.SourceAzure, Services: []tools.ServiceCost{}}

	t.Run("Should trim and disclose synthetic data", func(t *testing.T) {
		s := NewSynthesizer(&scriptedLLM{answers: []string{"  Total spend was $10.  \n"}}, 0)
		answer, err := s.Answer(ctx, "q", nil, mock)
		require.NoError(t, err)
		assert.Equal(t, "Total spend was $10.\n\n"+models.DemoDisclosure, answer)
	})

	t.Run("Should not repeat a disclosure the model already wrote", func(t *testing.T) {
		s := NewSynthesizer(&scriptedLLM{answers: []string{"Total spend was $10 (demo data)."}}, 0)
		answer, err := s.Answer(ctx, "q", nil, mock)
		require.NoError(t, err)
		assert.Equal(t, "Total spend was $10 (demo data).", answer)
	})

	t.Run("Should leave live answers untouched", func(t *testing.T) {
		s := NewSynthesizer(&scriptedLLM{answers: []string{"Total spend was $10."}}, 0)
		answer, err := s.Answer(ctx, "q", nil, live)
		require.NoError(t, err)
		assert.Equal(t, "Total spend was $10.", answer)
	})

	t.Run("Should propagate transport errors", func(t *testing.T) {
		_, err := NewSynthesizer(&scriptedLLM{err: assert.AnError}, 0).Answer(ctx, "q", nil, live)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestKnowledgeText(t *testing.T) {
	kb := []models.RetrievalResult{{Text: "a", Source: "vm.md"}, {Text: "b", Source: "aks.md"}}
	assert.Equal(t, "[vm.md]\na\n\n[aks.md]\nb", knowledgeText(kb, true))
	assert.Equal(t, "a\n\nb", knowledgeText(kb, false))
	assert.Equal(t, noKnowledge, knowledgeText(nil, true))
}
