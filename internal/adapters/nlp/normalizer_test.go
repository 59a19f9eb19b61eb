package nlp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
)

func TestMapTag(t *testing.T) {
	testCases := []struct {
		tag, lemma string
		want       domain.PartOfSpeech
	}{
		{"NN", "pizza", domain.PosNoun},
		{"NNS", "dog", domain.PosNoun},
		{"NNP", "london", domain.PosProperNoun},
		{"VBG", "run", domain.PosVerb},
		{"VBD", "be", domain.PosAux},
		{"MD", "can", domain.PosAux},
		{"JJR", "big", domain.PosAdjective},
		{"RB", "quickly", domain.PosAdverb},
		{"DT", "the", domain.PosOther},
		{"UH", "wow", domain.PosOther},
	}
	for _, tc := range testCases {
		t.Run(tc.tag, func(t *testing.T) {
			assert.Equal(t, tc.want, mapTag(tc.tag, tc.lemma))
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n, err := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	t.Run("леммы и служебные слова", func(t *testing.T) {
		tokens, err := n.Normalize(context.Background(), "The dogs were eating pizzas, 42!")
		require.NoError(t, err)

		lemmas := make(map[string]domain.PartOfSpeech)
		for _, tok := range tokens {
			lemmas[tok.Lemma] = tok.POS
		}
		assert.Equal(t, domain.PosOther, lemmas["the"])
		assert.Contains(t, lemmas, "dog")
		assert.Contains(t, lemmas, "pizza")
		assert.NotContains(t, lemmas, "42")
		assert.NotContains(t, lemmas, ",")
	})

	t.Run("пустой текст", func(t *testing.T) {
		tokens, err := n.Normalize(context.Background(), "   ")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("отмененный контекст", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := n.Normalize(ctx, "hello")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("свой список служебных слов", func(t *testing.T) {
		custom, err := New(WithStopWords("pizza"))
		require.NoError(t, err)
		tokens, err := custom.Normalize(context.Background(), "pizza")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, domain.PosOther, tokens[0].POS)
	})
}
