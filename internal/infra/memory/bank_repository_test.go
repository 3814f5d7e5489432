package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"quiz-room-service/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{BankLoader: NewStaticBankLoader(sampleBank())}
	repo := NewBankRepository(loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), "trivia"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetBank(context.Background(), "trivia"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestBankRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{BankLoader: NewStaticBankLoader(sampleBank())}
	repo := NewBankRepository(loader, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetBank(context.Background(), "trivia")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetBank(context.Background(), "trivia")

	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", loader.calls.Load())
	}
}

func TestBankRepositoryRejectsInvalidBank(t *testing.T) {
	broken := domain.QuestionBank{ID: "broken"}
	repo := NewBankRepository(NewStaticBankLoader(broken), time.Minute)

	if _, err := repo.GetBank(context.Background(), "broken"); !errors.Is(err, domain.ErrInvalidBank) {
		t.Fatalf("expected ErrInvalidBank, got %v", err)
	}
	if _, err := repo.GetBank(context.Background(), "missing"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestFallbackLoaderChain(t *testing.T) {
	def, err := DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	chain := FallbackLoader{NewStaticBankLoader(sampleBank()), NewStaticBankLoader(def)}

	bank, err := chain.LoadBank(context.Background(), domain.DefaultBankID)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if bank.Len() == 0 {
		t.Fatalf("expected questions in default bank")
	}
	if _, err := chain.LoadBank(context.Background(), "nope"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestDefaultBankHasSpecialQuestion(t *testing.T) {
	bank, err := DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	special := 0
	for _, q := range bank.Questions {
		if q.Special {
			special++
			if len(q.VideoLinks) == 0 {
				t.Fatalf("expected video links on special question")
			}
		}
	}
	if special != 1 {
		t.Fatalf("expected one special question, got %d", special)
	}
}

func TestFileBankLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := `id: office
questions:
  - prompt: Coffee or tea?
    options: [Coffee, Tea]
    correctIndex: 0
    timeLimit: 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	loader := NewFileBankLoader(path)

	bank, err := loader.LoadBank(context.Background(), "office")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if bank.Questions[0].Options[1] != "Tea" {
		t.Fatalf("unexpected bank %+v", bank)
	}
	if _, err := loader.LoadBank(context.Background(), "default"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound for other id, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	l.calls.Add(1)
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID: "trivia",
		Questions: []domain.Question{
			{ID: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1, TimeLimit: 30},
		},
	}
}
