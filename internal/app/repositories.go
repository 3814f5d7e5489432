package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// GameRepository persists rooms.
type GameRepository interface {
	// CreateGame returns domain.ErrRoomCodeTaken when the room code is already used.
	CreateGame(ctx context.Context, game domain.Game) error
	GameByCode(ctx context.Context, code string) (domain.Game, error)
	GameByID(ctx context.Context, id string) (domain.Game, error)
	// TransitionGame applies t only if the game is still at (t.FromStatus, t.FromIndex),
	// otherwise it returns domain.ErrStaleGame.
	TransitionGame(ctx context.Context, id string, t domain.GameTransition) (domain.Game, error)
}

// PlayerRepository persists players and their scores.
type PlayerRepository interface {
	AddPlayer(ctx context.Context, player domain.Player) error
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	// ListPlayers returns the players of a game in join order.
	ListPlayers(ctx context.Context, gameID string) ([]domain.Player, error)
	// IncrementScore atomically adds delta and returns the new score.
	IncrementScore(ctx context.Context, playerID string, delta int) (int, error)
}

// AnswerRepository persists write-once answers.
type AnswerRepository interface {
	// InsertAnswer returns domain.ErrAlreadyAnswered for a second answer to the same question.
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswers(ctx context.Context, gameID string, questionIndex int) ([]domain.Answer, error)
	PlayerAnswers(ctx context.Context, playerID string) ([]domain.Answer, error)
}

// Store is the relational state of the service.
type Store interface {
	GameRepository
	PlayerRepository
	AnswerRepository
}

// ShuffleRepository persists per-player option orders.
type ShuffleRepository interface {
	// InsertShuffleIfAbsent stores shuffle unless one exists for the same player and
	// question, and returns whichever permutation is stored afterwards.
	InsertShuffleIfAbsent(ctx context.Context, shuffle domain.OptionShuffle) (domain.OptionShuffle, error)
}

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// Notifier fans out change notifications per game.
type Notifier interface {
	Publish(ctx context.Context, change domain.Change) error
	// Subscribe returns a channel of changes for a game.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, gameID string) (<-chan domain.Change, func(), error)
}
