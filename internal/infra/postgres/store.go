package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// Store implements app.Store and app.ShuffleRepository on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const gameColumns = `id, room_code, bank_id, status, current_question_index, question_started_at, created_at`

func (s *Store) CreateGame(ctx context.Context, game domain.Game) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		game.ID, game.RoomCode, game.BankID, string(game.Status), game.CurrentQuestionIndex,
		nullTime(game.QuestionStartedAt), game.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrRoomCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *Store) GameByCode(ctx context.Context, code string) (domain.Game, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE room_code=$1`, code)
	return scanGame(row)
}

func (s *Store) GameByID(ctx context.Context, id string) (domain.Game, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id)
	return scanGame(row)
}

func (s *Store) TransitionGame(ctx context.Context, id string, t domain.GameTransition) (domain.Game, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE games SET status=$4, current_question_index=$5, question_started_at=$6
		WHERE id=$1 AND status=$2 AND current_question_index=$3
		RETURNING `+gameColumns,
		id, string(t.FromStatus), t.FromIndex, string(t.ToStatus), t.ToIndex, nullTime(t.StartedAt))
	game, err := scanGame(row)
	if !errors.Is(err, domain.ErrGameNotFound) {
		return game, err
	}
	// nothing matched: either the game is gone or someone moved it first
	if _, err := s.GameByID(ctx, id); err != nil {
		return domain.Game{}, err
	}
	return domain.Game{}, domain.ErrStaleGame
}

func (s *Store) AddPlayer(ctx context.Context, p domain.Player) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO players (id, game_id, username, avatar, personal_quote, score, is_host, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.GameID, p.Username, p.Avatar, p.PersonalQuote, p.Score, p.IsHost, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

const playerColumns = `id, game_id, username, avatar, personal_quote, score, is_host, joined_at`

func (s *Store) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	var p domain.Player
	err := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id=$1`, id).
		Scan(&p.ID, &p.GameID, &p.Username, &p.Avatar, &p.PersonalQuote, &p.Score, &p.IsHost, &p.JoinedAt)
	// ids that are not uuids cannot name a player
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]domain.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE game_id=$1 ORDER BY joined_at, id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := make([]domain.Player, 0)
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.GameID, &p.Username, &p.Avatar, &p.PersonalQuote, &p.Score, &p.IsHost, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Store) IncrementScore(ctx context.Context, playerID string, delta int) (int, error) {
	var score int
	err := s.pool.QueryRow(ctx, `UPDATE players SET score = score + $2 WHERE id=$1 RETURNING score`, playerID, delta).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}
	return score, nil
}

func (s *Store) InsertAnswer(ctx context.Context, a domain.Answer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, game_id, player_id, question_index, selected_option, is_correct, time_taken, points_earned, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.GameID, a.PlayerID, a.QuestionIndex, a.SelectedOption, a.IsCorrect, a.TimeTaken, a.PointsEarned, a.AnsweredAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyAnswered
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

const answerColumns = `id, game_id, player_id, question_index, selected_option, is_correct, time_taken, points_earned, answered_at`

func (s *Store) ListAnswers(ctx context.Context, gameID string, questionIndex int) ([]domain.Answer, error) {
	return s.queryAnswers(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE game_id=$1 AND question_index=$2 ORDER BY answered_at`,
		gameID, questionIndex)
}

func (s *Store) PlayerAnswers(ctx context.Context, playerID string) ([]domain.Answer, error) {
	return s.queryAnswers(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE player_id=$1 ORDER BY question_index`,
		playerID)
}

func (s *Store) queryAnswers(ctx context.Context, sql string, args ...interface{}) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := make([]domain.Answer, 0)
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.GameID, &a.PlayerID, &a.QuestionIndex, &a.SelectedOption,
			&a.IsCorrect, &a.TimeTaken, &a.PointsEarned, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// InsertShuffleIfAbsent relies on the (player_id, question_index) key: the first insert wins
// and every caller reads back the stored order.
func (s *Store) InsertShuffleIfAbsent(ctx context.Context, shuffle domain.OptionShuffle) (domain.OptionShuffle, error) {
	order := make([]int32, len(shuffle.ShuffledOrder))
	for i, v := range shuffle.ShuffledOrder {
		order[i] = int32(v)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO option_shuffles (player_id, question_index, shuffled_order)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, question_index) DO NOTHING`,
		shuffle.PlayerID, shuffle.QuestionIndex, order)
	if err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("insert shuffle: %w", err)
	}

	var stored []int32
	err = s.pool.QueryRow(ctx,
		`SELECT shuffled_order FROM option_shuffles WHERE player_id=$1 AND question_index=$2`,
		shuffle.PlayerID, shuffle.QuestionIndex).Scan(&stored)
	if err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("load shuffle: %w", err)
	}
	shuffle.ShuffledOrder = make([]int, len(stored))
	for i, v := range stored {
		shuffle.ShuffledOrder[i] = int(v)
	}
	return shuffle, nil
}

func scanGame(row pgx.Row) (domain.Game, error) {
	var (
		game      domain.Game
		status    string
		startedAt *time.Time
	)
	err := row.Scan(&game.ID, &game.RoomCode, &game.BankID, &status, &game.CurrentQuestionIndex, &startedAt, &game.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game: %w", err)
	}
	game.Status = domain.GameStatus(status)
	if startedAt != nil {
		game.QuestionStartedAt = *startedAt
	}
	return game, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
