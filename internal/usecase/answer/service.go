package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Answer is the response to a question.
type Answer struct {
	Text     string
	ChunkID  string
	Distance float64
	Cached   bool
}

// Service answers questions from the indexed document.
type Service struct {
	retriever Retriever
	answerer  Answerer
	memo      Memo
}

// New creates an answer service. memo can be nil.
func New(r Retriever, a Answerer, memo Memo) *Service {
	return &Service{retriever: r, answerer: a, memo: memo}
}

// Ask retrieves the closest chunk and asks the model to answer from it.
// domain.ErrNoRelevantContent is returned unchanged when nothing is indexed.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)

	n, err := s.retriever.AnswerContext(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	if s.memo != nil {
		if text, ok := s.memo.Get(ctx, question, n.ChunkID); ok {
			return Answer{Text: text, ChunkID: n.ChunkID, Distance: n.Distance, Cached: true}, nil
		}
	}

	text, err := s.answerer.Answer(ctx, question, n.Text)
	if err != nil {
		return Answer{}, fmt.Errorf("answer from %s: %w", n.ChunkID, err)
	}
	if text == "" {
		return Answer{}, fmt.Errorf("answer from %s: empty text: %w", n.ChunkID, domain.ErrAnswerService)
	}

	if s.memo != nil {
		s.memo.Put(ctx, question, n.ChunkID, text)
	}

	return Answer{Text: text, ChunkID: n.ChunkID, Distance: n.Distance}, nil
}
