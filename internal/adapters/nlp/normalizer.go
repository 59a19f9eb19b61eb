// Package nlp содержит лингвистический нормализатор: разметку частей речи
// и лемматизацию английского текста.
package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/jdkato/prose/v2"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// Option — функциональная опция для настройки Normalizer.
type Option func(*Normalizer)

// WithLogger устанавливает логгер нормализатора.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.log = l
		}
	}
}

// WithStopWords заменяет список служебных слов.
func WithStopWords(words ...string) Option {
	return func(n *Normalizer) {
		n.stop = make(map[string]struct{}, len(words))
		for _, w := range words {
			n.stop[strings.ToLower(w)] = struct{}{}
		}
	}
}

// Normalizer размечает текст тегами prose и приводит слова к леммам golem.
// Служебные слова получают тег OTHER.
type Normalizer struct {
	lemmatizer *golem.Lemmatizer
	stop       map[string]struct{}
	log        *slog.Logger
}

var _ ports.Normalizer = (*Normalizer)(nil)

// New загружает словарь лемм. Нормализатор создается один раз
// и безопасен для параллельного использования.
func New(opts ...Option) (*Normalizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemma dictionary: %w", err)
	}
	n := &Normalizer{
		lemmatizer: lem,
		log:        slog.Default(),
	}
	WithStopWords(defaultStopWords...)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize возвращает пары лемма/часть речи для слов текста.
// Знаки препинания и числа пропускаются.
func (n *Normalizer) Normalize(ctx context.Context, text string) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, fmt.Errorf("tag text: %w", err)
	}

	tokens := doc.Tokens()
	out := make([]domain.Token, 0, len(tokens))
	for _, tok := range tokens {
		if !hasLetter(tok.Text) {
			continue
		}
		word := strings.ToLower(tok.Text)
		lemma := n.lemmatizer.LemmaLower(word)
		if lemma == "" {
			lemma = word
		}
		pos := mapTag(tok.Tag, lemma)
		if _, stop := n.stop[word]; stop {
			pos = domain.PosOther
		}
		out = append(out, domain.Token{Lemma: lemma, POS: pos})
	}
	n.log.DebugContext(ctx, "Text normalized", "tokens", len(out))
	return out, nil
}

// mapTag переводит тег Penn Treebank в универсальную часть речи.
func mapTag(tag, lemma string) domain.PartOfSpeech {
	switch {
	case tag == "MD":
		return domain.PosAux
	case tag == "NNP" || tag == "NNPS":
		return domain.PosProperNoun
	case strings.HasPrefix(tag, "NN"):
		return domain.PosNoun
	case strings.HasPrefix(tag, "VB"):
		if _, aux := auxiliaries[lemma]; aux {
			return domain.PosAux
		}
		return domain.PosVerb
	case strings.HasPrefix(tag, "JJ"):
		return domain.PosAdjective
	case strings.HasPrefix(tag, "RB"):
		return domain.PosAdverb
	}
	return domain.PosOther
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

var auxiliaries = map[string]struct{}{"be": {}, "have": {}, "do": {}}

var defaultStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing", "down",
	"during", "each", "else", "even", "ever", "few", "for", "from", "further", "get",
	"got", "had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him",
	"himself", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "now", "of", "off", "oh",
	"ok", "okay", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out",
	"over", "own", "really", "same", "she", "should", "so", "some", "such", "than", "that",
	"the", "their", "theirs", "them", "themselves", "then", "there", "these", "they",
	"this", "those", "through", "to", "too", "under", "until", "up", "very", "was", "we",
	"were", "what", "when", "where", "which", "while", "who", "whom", "why", "will",
	"with", "would", "yeah", "yes", "you", "your", "yours", "yourself", "yourselves",
}
