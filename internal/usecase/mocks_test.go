package usecase

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"qa-orchestrator/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// MockDocumentStore is a test double for domain.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Insert(ctx context.Context, chunk domain.DocumentChunk, embedding []float32) (int64, error) {
	args := m.Called(ctx, chunk, embedding)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentStore) InsertBatch(ctx context.Context, chunks []domain.DocumentChunk, embeddings [][]float32) error {
	args := m.Called(ctx, chunks, embeddings)
	return args.Error(0)
}

func (m *MockDocumentStore) SimilaritySearch(ctx context.Context, vector []float32, k int, threshold float64) ([]domain.Document, error) {
	args := m.Called(ctx, vector, k, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentStore) LexicalSearch(ctx context.Context, query string, k int) ([]domain.Document, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentStore) FetchByTitleAndSource(ctx context.Context, title, source string) (*domain.Document, error) {
	args := m.Called(ctx, title, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockSessionStore is a test double for domain.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Save(ctx context.Context, run *domain.PipelineRun) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionStore) List(ctx context.Context, limit int) ([]domain.Session, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) DeleteAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionStore) Stats(ctx context.Context) (*domain.SessionStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionStats), args.Error(1)
}

// stubChatModel answers completions through a function, capturing nothing.
type stubChatModel struct {
	name     string
	complete func(req domain.ChatRequest) (*domain.ChatResult, error)
}

func (s *stubChatModel) Complete(_ context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	return s.complete(req)
}

func (s *stubChatModel) Model() string { return s.name }

// stubEmbedder returns a fixed-shape vector derived from the input length.
type stubEmbedder struct {
	dims  int
	embed func(text string) (*domain.EmbedResult, error)
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (*domain.EmbedResult, error) {
	if s.embed != nil {
		return s.embed(text)
	}
	return &domain.EmbedResult{Vector: make([]float32, s.dims), Tokens: len(text) / 4}, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }

// stubTxManager runs the function without a transaction.
type stubTxManager struct{}

func (stubTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestEmbedder(dims int) *CachedEmbedder {
	embedder, err := NewCachedEmbedder(&stubEmbedder{dims: dims}, 16, testLogger())
	if err != nil {
		panic(err)
	}
	return embedder
}
