package answer

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain/entry"
)

// Retriever finds the chunk that best matches a question.
type Retriever interface {
	AnswerContext(ctx context.Context, question string) (entry.Neighbor, error)
}

// Answerer phrases an answer from a question and a context passage.
type Answerer interface {
	Answer(ctx context.Context, question, passage string) (string, error)
}

// Memo stores answers keyed by (question, chunk id). Failures are handled inside.
type Memo interface {
	Get(ctx context.Context, question, chunkID string) (string, bool)
	Put(ctx context.Context, question, chunkID, answer string)
}
