package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-room-service/internal/domain"
)

// Store is an in-memory implementation of app.Store and app.ShuffleRepository.
type Store struct {
	mu       sync.RWMutex
	games    map[string]domain.Game
	codes    map[string]string // room code -> game id
	players  map[string]domain.Player
	answers  map[answerKey]domain.Answer
	shuffles map[answerKey][]int
}

// answerKey identifies one player's slot for one question.
type answerKey struct {
	playerID string
	question int
}

func NewStore() *Store {
	return &Store{
		games:    make(map[string]domain.Game),
		codes:    make(map[string]string),
		players:  make(map[string]domain.Player),
		answers:  make(map[answerKey]domain.Answer),
		shuffles: make(map[answerKey][]int),
	}
}

func (s *Store) CreateGame(_ context.Context, game domain.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[game.RoomCode]; ok {
		return domain.ErrRoomCodeTaken
	}
	s.games[game.ID] = game
	s.codes[game.RoomCode] = game.ID
	return nil
}

func (s *Store) GameByCode(_ context.Context, code string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return s.games[id], nil
}

func (s *Store) GameByID(_ context.Context, id string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return game, nil
}

func (s *Store) TransitionGame(_ context.Context, id string, t domain.GameTransition) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if game.Status != t.FromStatus || game.CurrentQuestionIndex != t.FromIndex {
		return domain.Game{}, domain.ErrStaleGame
	}
	game.Status = t.ToStatus
	game.CurrentQuestionIndex = t.ToIndex
	game.QuestionStartedAt = t.StartedAt
	s.games[id] = game
	return game, nil
}

func (s *Store) AddPlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[player.GameID]; !ok {
		return domain.ErrGameNotFound
	}
	s.players[player.ID] = player
	return nil
}

func (s *Store) GetPlayer(_ context.Context, id string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

func (s *Store) ListPlayers(_ context.Context, gameID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]domain.Player, 0)
	for _, p := range s.players {
		if p.GameID == gameID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (s *Store) IncrementScore(_ context.Context, playerID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return 0, domain.ErrPlayerNotFound
	}
	player.Score += delta
	s.players[playerID] = player
	return player.Score, nil
}

func (s *Store) InsertAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{playerID: answer.PlayerID, question: answer.QuestionIndex}
	if _, ok := s.answers[key]; ok {
		return domain.ErrAlreadyAnswered
	}
	s.answers[key] = answer
	return nil
}

func (s *Store) ListAnswers(_ context.Context, gameID string, questionIndex int) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if a.GameID == gameID && a.QuestionIndex == questionIndex {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].AnsweredAt.Before(answers[j].AnsweredAt) })
	return answers, nil
}

func (s *Store) PlayerAnswers(_ context.Context, playerID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make([]domain.Answer, 0)
	for key, a := range s.answers {
		if key.playerID == playerID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })
	return answers, nil
}

func (s *Store) InsertShuffleIfAbsent(_ context.Context, shuffle domain.OptionShuffle) (domain.OptionShuffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{playerID: shuffle.PlayerID, question: shuffle.QuestionIndex}
	if existing, ok := s.shuffles[key]; ok {
		shuffle.ShuffledOrder = append([]int(nil), existing...)
		return shuffle, nil
	}
	s.shuffles[key] = append([]int(nil), shuffle.ShuffledOrder...)
	return shuffle, nil
}
