package chi

import (
	"context"
	"sync"

	"go.uber.org/zap"

	answeruc "github.com/kailas-cloud/docqa/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

type mockAsker struct {
	askFn func(ctx context.Context, question string) (answeruc.Answer, error)
}

func (m *mockAsker) Ask(ctx context.Context, question string) (answeruc.Answer, error) {
	if m.askFn != nil {
		return m.askFn(ctx, question)
	}
	return answeruc.Answer{}, nil
}

type mockIngester struct {
	mu       sync.Mutex
	state    retrieval.State
	ingestFn func(ctx context.Context, text string) (retrieval.IngestResult, error)
	calls    []string
}

func (m *mockIngester) Ingest(ctx context.Context, text string) (retrieval.IngestResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.ingestFn != nil {
		return m.ingestFn(ctx, text)
	}
	return retrieval.IngestResult{}, nil
}

func (m *mockIngester) State() retrieval.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockIngester) ingested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestServer(a *mockAsker, ing *mockIngester, opts Options) *Server {
	if a == nil {
		a = &mockAsker{}
	}
	if ing == nil {
		ing = &mockIngester{}
	}
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.CheckIndex: healthuc.CheckOK},
	}}
	return NewServer(a, ing, h, opts, zap.NewNop())
}
