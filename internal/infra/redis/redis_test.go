package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr := runRedis(t)
	client := newClient(mr)

	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(sampleBank())}
	repo := NewBankRepository(client, loader, time.Minute)

	bank, err := repo.GetBank(context.Background(), "trivia")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("quiz:bank:trivia") {
		t.Fatalf("expected bank cached in redis")
	}

	cached, _ := repo.GetBank(context.Background(), "trivia")
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if cached.Questions[0].Options[1] != bank.Questions[0].Options[1] {
		t.Fatalf("cached bank differs: %+v", cached)
	}

	if err := repo.Invalidate(context.Background(), "trivia"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetBank(context.Background(), "trivia")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls.Load())
	}
}

func TestBankRepositoryZeroTTLSkipsCache(t *testing.T) {
	mr := runRedis(t)
	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(sampleBank())}
	repo := NewBankRepository(newClient(mr), loader, 0)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetBank(context.Background(), "trivia"); err != nil {
			t.Fatalf("get bank: %v", err)
		}
	}
	if mr.Exists("quiz:bank:trivia") {
		t.Fatalf("expected nothing cached with a zero ttl")
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected every read to hit the loader, got %d calls", loader.calls.Load())
	}
}

func TestShuffleStoreFirstWriteWins(t *testing.T) {
	mr := runRedis(t)
	store := NewShuffleStore(newClient(mr), time.Hour)
	ctx := context.Background()

	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {1, 0, 2}}
	results := make([][]int, len(orders))
	var wg sync.WaitGroup
	for i, order := range orders {
		wg.Add(1)
		go func(i int, order []int) {
			defer wg.Done()
			got, err := store.InsertShuffleIfAbsent(ctx, domain.OptionShuffle{PlayerID: "p1", QuestionIndex: 3, ShuffledOrder: order})
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			results[i] = got.ShuffledOrder
		}(i, order)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		for j := range results[0] {
			if results[i][j] != results[0][j] {
				t.Fatalf("callers saw different orders: %v vs %v", results[0], results[i])
			}
		}
	}
	if ttl := mr.TTL("quiz:shuffles:p1"); ttl <= 0 {
		t.Fatalf("expected ttl on shuffle hash, got %v", ttl)
	}
}

func TestNotifierRoundTrip(t *testing.T) {
	mr := runRedis(t)
	client := newClient(mr)
	notifier := NewNotifier(client, nil)
	ctx := context.Background()

	ch, cancel, err := notifier.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := domain.Change{GameID: "g1", Table: domain.TableAnswers, Kind: domain.ChangeInsert}
	if err := notifier.Publish(ctx, domain.Change{GameID: "g2", Table: domain.TableGames, Kind: domain.ChangeUpdate}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if err := notifier.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change")
	}

	cancel()
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func runRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
