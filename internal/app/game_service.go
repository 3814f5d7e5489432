package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/google/uuid"
)

const maxRoomCodeAttempts = 10

// GameService contains the quiz room use cases.
type GameService struct {
	store    Store
	shuffles ShuffleRepository
	banks    BankRepository
	notifier Notifier

	now   func() time.Time
	newID func() string
	log   *slog.Logger
	rng   *lockedRand
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithRand makes room codes and shuffles deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(s *GameService) { s.rng = &lockedRand{rng: rng} }
}

// WithLogger sets the logger used for background failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *GameService) { s.log = log }
}

func NewGameService(store Store, shuffles ShuffleRepository, banks BankRepository, notifier Notifier, opts ...Option) *GameService {
	s := &GameService{
		store:    store,
		shuffles: shuffles,
		banks:    banks,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      slog.Default(),
		rng:      &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGameRequest describes a new room. HostName is optional; when set the host
// also appears in the roster as a host player.
type CreateGameRequest struct {
	BankID     string
	HostName   string
	HostAvatar string
}

// JoinRequest is a player's profile.
type JoinRequest struct {
	Username string
	Avatar   string
	Quote    string
}

// AnswerRequest is a player's selection, as a position in that player's displayed options.
type AnswerRequest struct {
	PlayerID      string
	QuestionIndex int
	DisplayIndex  int
}

// CreateGame opens a new room in the waiting state.
func (s *GameService) CreateGame(ctx context.Context, req CreateGameRequest) (domain.Game, *domain.Player, error) {
	bankID := req.BankID
	if bankID == "" {
		bankID = domain.DefaultBankID
	}
	if _, err := s.banks.GetBank(ctx, bankID); err != nil {
		return domain.Game{}, nil, err
	}

	var game domain.Game
	created := false
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		game = domain.Game{
			ID:        s.newID(),
			RoomCode:  s.roomCode(),
			BankID:    bankID,
			Status:    domain.StatusWaiting,
			CreatedAt: s.now(),
		}
		err := s.store.CreateGame(ctx, game)
		if errors.Is(err, domain.ErrRoomCodeTaken) {
			continue
		}
		if err != nil {
			return domain.Game{}, nil, fmt.Errorf("create game: %w", err)
		}
		created = true
		break
	}
	if !created {
		return domain.Game{}, nil, fmt.Errorf("create game: %w", domain.ErrRoomCodeTaken)
	}
	s.publish(ctx, game.ID, domain.TableGames, domain.ChangeInsert)

	if req.HostName == "" {
		return game, nil, nil
	}
	host := domain.Player{
		ID:       s.newID(),
		GameID:   game.ID,
		Username: req.HostName,
		Avatar:   req.HostAvatar,
		IsHost:   true,
		JoinedAt: s.now(),
	}
	if err := s.store.AddPlayer(ctx, host); err != nil {
		return domain.Game{}, nil, fmt.Errorf("add host: %w", err)
	}
	s.publish(ctx, game.ID, domain.TablePlayers, domain.ChangeInsert)
	return game, &host, nil
}

// GameByCode resolves a room code.
func (s *GameService) GameByCode(ctx context.Context, code string) (domain.Game, error) {
	return s.store.GameByCode(ctx, code)
}

// JoinGame adds a player with score 0.
func (s *GameService) JoinGame(ctx context.Context, code string, req JoinRequest) (domain.Player, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Player{}, err
	}
	if game.Status == domain.StatusFinished {
		return domain.Player{}, domain.ErrGameFinished
	}

	player := domain.Player{
		ID:            s.newID(),
		GameID:        game.ID,
		Username:      req.Username,
		Avatar:        req.Avatar,
		PersonalQuote: req.Quote,
		JoinedAt:      s.now(),
	}
	if err := s.store.AddPlayer(ctx, player); err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}
	s.publish(ctx, game.ID, domain.TablePlayers, domain.ChangeInsert)
	return player, nil
}

// Players lists a game's roster in join order.
func (s *GameService) Players(ctx context.Context, code string) ([]domain.Player, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.ListPlayers(ctx, game.ID)
}

// StartGame moves a waiting game to its first question.
func (s *GameService) StartGame(ctx context.Context, code string) (domain.Game, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Game{}, err
	}
	if game.Status != domain.StatusWaiting {
		return domain.Game{}, domain.ErrInvalidTransition
	}
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return domain.Game{}, err
	}
	if countEligible(players) == 0 {
		return domain.Game{}, domain.ErrNoPlayers
	}
	return s.transition(ctx, game, domain.StatusPlaying, 0, s.now())
}

// NextQuestion advances the question pointer, finishing the game after the last question.
func (s *GameService) NextQuestion(ctx context.Context, code string) (domain.Game, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Game{}, err
	}
	if game.Status != domain.StatusPlaying {
		return domain.Game{}, domain.ErrInvalidTransition
	}
	bank, err := s.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return domain.Game{}, err
	}
	next := game.CurrentQuestionIndex + 1
	if next >= bank.Len() {
		return s.transition(ctx, game, domain.StatusFinished, game.CurrentQuestionIndex, game.QuestionStartedAt)
	}
	return s.transition(ctx, game, domain.StatusPlaying, next, s.now())
}

// EndGame finishes a game early.
func (s *GameService) EndGame(ctx context.Context, code string) (domain.Game, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Game{}, err
	}
	if game.Status == domain.StatusFinished {
		return domain.Game{}, domain.ErrInvalidTransition
	}
	return s.transition(ctx, game, domain.StatusFinished, game.CurrentQuestionIndex, game.QuestionStartedAt)
}

func (s *GameService) transition(ctx context.Context, game domain.Game, to domain.GameStatus, index int, startedAt time.Time) (domain.Game, error) {
	updated, err := s.store.TransitionGame(ctx, game.ID, domain.GameTransition{
		FromStatus: game.Status,
		FromIndex:  game.CurrentQuestionIndex,
		ToStatus:   to,
		ToIndex:    index,
		StartedAt:  startedAt,
	})
	if err != nil {
		return domain.Game{}, err
	}
	s.log.Info("game transition", "room", game.RoomCode, "from", game.Status, "to", to, "question", index)
	s.publish(ctx, game.ID, domain.TableGames, domain.ChangeUpdate)
	return updated, nil
}

// Shuffle returns the stored option order for a player and question, creating it on first use.
func (s *GameService) Shuffle(ctx context.Context, playerID string, questionIndex, optionCount int) ([]int, error) {
	perm, err := domain.NewPermutation(s.rng, optionCount)
	if err != nil {
		return nil, err
	}
	stored, err := s.shuffles.InsertShuffleIfAbsent(ctx, domain.OptionShuffle{
		PlayerID:      playerID,
		QuestionIndex: questionIndex,
		ShuffledOrder: perm,
	})
	if err != nil {
		return nil, fmt.Errorf("store shuffle: %w", err)
	}
	if err := domain.CheckPermutation(stored.ShuffledOrder, optionCount); err != nil {
		return nil, fmt.Errorf("stored shuffle for question %d: %w", questionIndex, err)
	}
	return stored.ShuffledOrder, nil
}

// CurrentQuestion returns the open question as the player sees it.
func (s *GameService) CurrentQuestion(ctx context.Context, code, playerID string) (domain.QuestionView, error) {
	game, err := s.playingGame(ctx, code)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if _, err := s.playerInGame(ctx, game, playerID); err != nil {
		return domain.QuestionView{}, err
	}
	bank, err := s.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return s.questionView(ctx, game, bank, playerID)
}

func (s *GameService) questionView(ctx context.Context, game domain.Game, bank domain.QuestionBank, playerID string) (domain.QuestionView, error) {
	q, err := bank.Question(game.CurrentQuestionIndex)
	if err != nil {
		return domain.QuestionView{}, err
	}
	perm, err := s.Shuffle(ctx, playerID, game.CurrentQuestionIndex, len(q.Options))
	if err != nil {
		return domain.QuestionView{}, err
	}
	options, err := domain.ApplyShuffle(q.Options, perm)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return domain.QuestionView{
		Index:      game.CurrentQuestionIndex,
		Total:      bank.Len(),
		Prompt:     q.Prompt,
		Options:    options,
		TimeLimit:  q.TimeLimit,
		Deadline:   deadline(game, q),
		Special:    q.Special,
		ImageURL:   q.ImageURL,
		VideoLinks: q.VideoLinks,
	}, nil
}

// HostQuestion returns the open question in original order with its answer key.
func (s *GameService) HostQuestion(ctx context.Context, code string) (domain.HostQuestionView, error) {
	game, err := s.playingGame(ctx, code)
	if err != nil {
		return domain.HostQuestionView{}, err
	}
	bank, err := s.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return domain.HostQuestionView{}, err
	}
	return hostView(game, bank)
}

func hostView(game domain.Game, bank domain.QuestionBank) (domain.HostQuestionView, error) {
	q, err := bank.Question(game.CurrentQuestionIndex)
	if err != nil {
		return domain.HostQuestionView{}, err
	}
	return domain.HostQuestionView{
		Index:    game.CurrentQuestionIndex,
		Total:    bank.Len(),
		Question: q,
		Deadline: deadline(game, q),
	}, nil
}

// SubmitAnswer scores a player's selection for the open question.
func (s *GameService) SubmitAnswer(ctx context.Context, code string, req AnswerRequest) (domain.AnswerResult, error) {
	game, player, q, err := s.openQuestion(ctx, code, req.PlayerID, req.QuestionIndex)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	// the countdown already ran out: the selection is ignored and the question counts as missed
	if !s.now().Before(deadline(game, q)) {
		return s.recordTimeout(ctx, game, player, q)
	}
	perm, err := s.Shuffle(ctx, player.ID, game.CurrentQuestionIndex, len(q.Options))
	if err != nil {
		return domain.AnswerResult{}, err
	}
	correct, err := domain.ValidateAnswer(req.DisplayIndex, perm, q.CorrectIndex)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	elapsed := s.elapsedSeconds(game, q)
	points := 0
	if correct && !q.Special {
		points = domain.Points(elapsed, q.TimeLimit)
	}
	answer := domain.Answer{
		ID:             s.newID(),
		GameID:         game.ID,
		PlayerID:       player.ID,
		QuestionIndex:  game.CurrentQuestionIndex,
		SelectedOption: perm[req.DisplayIndex],
		IsCorrect:      correct,
		TimeTaken:      elapsed,
		PointsEarned:   points,
		AnsweredAt:     s.now(),
	}
	if err := s.store.InsertAnswer(ctx, answer); err != nil {
		return domain.AnswerResult{}, err
	}

	// score before notifying so a reveal triggered by this answer already includes it
	total := player.Score
	if points > 0 {
		total, err = s.store.IncrementScore(ctx, player.ID, points)
		if err != nil {
			return domain.AnswerResult{}, fmt.Errorf("increment score: %w", err)
		}
		s.publish(ctx, game.ID, domain.TablePlayers, domain.ChangeUpdate)
	}
	s.publish(ctx, game.ID, domain.TableAnswers, domain.ChangeInsert)

	return domain.AnswerResult{
		QuestionIndex:       answer.QuestionIndex,
		Correct:             correct,
		Points:              points,
		TotalScore:          total,
		TimeTaken:           elapsed,
		CorrectDisplayIndex: domain.DisplayIndexOf(q.CorrectIndex, perm),
	}, nil
}

// RecordTimeout stores an unanswered question as incorrect with no points.
func (s *GameService) RecordTimeout(ctx context.Context, code, playerID string, questionIndex int) (domain.AnswerResult, error) {
	game, player, q, err := s.openQuestion(ctx, code, playerID, questionIndex)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return s.recordTimeout(ctx, game, player, q)
}

func (s *GameService) recordTimeout(ctx context.Context, game domain.Game, player domain.Player, q domain.Question) (domain.AnswerResult, error) {
	perm, err := s.Shuffle(ctx, player.ID, game.CurrentQuestionIndex, len(q.Options))
	if err != nil {
		return domain.AnswerResult{}, err
	}
	answer := domain.Answer{
		ID:             s.newID(),
		GameID:         game.ID,
		PlayerID:       player.ID,
		QuestionIndex:  game.CurrentQuestionIndex,
		SelectedOption: domain.TimeoutOption,
		TimeTaken:      q.TimeLimit,
		AnsweredAt:     s.now(),
	}
	if err := s.store.InsertAnswer(ctx, answer); err != nil {
		return domain.AnswerResult{}, err
	}
	s.publish(ctx, game.ID, domain.TableAnswers, domain.ChangeInsert)

	return domain.AnswerResult{
		QuestionIndex:       answer.QuestionIndex,
		Timeout:             true,
		TotalScore:          player.Score,
		TimeTaken:           q.TimeLimit,
		CorrectDisplayIndex: domain.DisplayIndexOf(q.CorrectIndex, perm),
	}, nil
}

func (s *GameService) openQuestion(ctx context.Context, code, playerID string, questionIndex int) (domain.Game, domain.Player, domain.Question, error) {
	game, err := s.playingGame(ctx, code)
	if err != nil {
		return domain.Game{}, domain.Player{}, domain.Question{}, err
	}
	if questionIndex != game.CurrentQuestionIndex {
		return domain.Game{}, domain.Player{}, domain.Question{}, domain.ErrQuestionClosed
	}
	player, err := s.playerInGame(ctx, game, playerID)
	if err != nil {
		return domain.Game{}, domain.Player{}, domain.Question{}, err
	}
	bank, err := s.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return domain.Game{}, domain.Player{}, domain.Question{}, err
	}
	q, err := bank.Question(game.CurrentQuestionIndex)
	if err != nil {
		return domain.Game{}, domain.Player{}, domain.Question{}, err
	}
	return game, player, q, nil
}

// Progress reports whether every eligible player answered the current question.
func (s *GameService) Progress(ctx context.Context, code string) (domain.Progress, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Progress{}, err
	}
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return domain.Progress{}, err
	}
	progress, _, err := s.progressFor(ctx, game, players)
	return progress, err
}

// progressFor also returns the ids of players who answered the current question.
func (s *GameService) progressFor(ctx context.Context, game domain.Game, players []domain.Player) (domain.Progress, map[string]bool, error) {
	answers, err := s.store.ListAnswers(ctx, game.ID, game.CurrentQuestionIndex)
	if err != nil {
		return domain.Progress{}, nil, err
	}
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.PlayerID] = true
	}

	progress := domain.Progress{QuestionIndex: game.CurrentQuestionIndex}
	for _, p := range players {
		if p.IsHost {
			continue
		}
		progress.Eligible++
		if answered[p.ID] {
			progress.Answered++
		}
	}
	progress.AllAnswered = progress.Eligible > 0 && progress.Answered >= progress.Eligible
	return progress, answered, nil
}

// Leaderboard ranks a game's players by score.
func (s *GameService) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboardFor(game, players), nil
}

func (s *GameService) leaderboardFor(game domain.Game, players []domain.Player) domain.Leaderboard {
	ranked := make([]domain.Player, len(players))
	copy(ranked, players)
	// Ties go to whoever joined first, then by name.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].JoinedAt.Equal(ranked[j].JoinedAt) {
			return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
		}
		return ranked[i].Username < ranked[j].Username
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Username: p.Username,
			Avatar:   p.Avatar,
			Quote:    p.PersonalQuote,
			Score:    p.Score,
			IsHost:   p.IsHost,
		})
	}
	return domain.Leaderboard{
		GameID:    game.ID,
		RoomCode:  game.RoomCode,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

// PlayerSummary returns a player's rank and answer statistics.
func (s *GameService) PlayerSummary(ctx context.Context, code, playerID string) (domain.PlayerSummary, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.PlayerSummary{}, err
	}
	player, err := s.playerInGame(ctx, game, playerID)
	if err != nil {
		return domain.PlayerSummary{}, err
	}
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return domain.PlayerSummary{}, err
	}
	bank, err := s.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return domain.PlayerSummary{}, err
	}
	answers, err := s.store.PlayerAnswers(ctx, player.ID)
	if err != nil {
		return domain.PlayerSummary{}, err
	}

	summary := domain.PlayerSummary{
		Player:         player,
		TotalPlayers:   len(players),
		TotalQuestions: bank.Len(),
	}
	for _, entry := range s.leaderboardFor(game, players).Entries {
		if entry.PlayerID == player.ID {
			summary.Rank = entry.Rank
			break
		}
	}
	totalTime := 0
	for _, a := range answers {
		if a.IsCorrect {
			summary.CorrectAnswers++
		}
		totalTime += a.TimeTaken
	}
	if len(answers) > 0 {
		summary.AverageTime = float64(totalTime) / float64(len(answers))
	}
	return summary, nil
}

func (s *GameService) playingGame(ctx context.Context, code string) (domain.Game, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return domain.Game{}, err
	}
	if game.Status != domain.StatusPlaying {
		return domain.Game{}, domain.ErrGameNotPlaying
	}
	return game, nil
}

func (s *GameService) playerInGame(ctx context.Context, game domain.Game, playerID string) (domain.Player, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return domain.Player{}, err
	}
	if player.GameID != game.ID {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

// elapsedSeconds is whole seconds since the question opened, capped at its limit.
func (s *GameService) elapsedSeconds(game domain.Game, q domain.Question) int {
	elapsed := int(s.now().Sub(game.QuestionStartedAt) / time.Second)
	if elapsed < 0 {
		return 0
	}
	if elapsed > q.TimeLimit {
		return q.TimeLimit
	}
	return elapsed
}

func (s *GameService) publish(ctx context.Context, gameID string, table domain.ChangeTable, kind domain.ChangeKind) {
	err := s.notifier.Publish(ctx, domain.Change{GameID: gameID, Table: table, Kind: kind})
	if err != nil {
		s.log.Warn("publish change failed", "game", gameID, "table", table, "err", err)
	}
}

// lockedRand is a domain.IntSource safe for concurrent requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (s *GameService) roomCode() string {
	return strconv.Itoa(100000 + s.rng.Intn(900000))
}

func deadline(game domain.Game, q domain.Question) time.Time {
	return game.QuestionStartedAt.Add(time.Duration(q.TimeLimit) * time.Second)
}

func countEligible(players []domain.Player) int {
	n := 0
	for _, p := range players {
		if !p.IsHost {
			n++
		}
	}
	return n
}
