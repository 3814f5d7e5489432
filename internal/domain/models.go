package domain

import "time"

// GameStatus is the room lifecycle state. It only ever moves forward.
type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

// TimeoutOption is stored as the selected option when the countdown expired.
const TimeoutOption = -1

// DefaultBankID names the question bank used when a game does not pick one.
const DefaultBankID = "default"

// Game is one quiz room.
type Game struct {
	ID                   string     `json:"id"`
	RoomCode             string     `json:"roomCode"`
	BankID               string     `json:"bankId"`
	Status               GameStatus `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	QuestionStartedAt    time.Time  `json:"questionStartedAt"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// GameTransition is a compare-and-set update of a game's progression.
type GameTransition struct {
	FromStatus GameStatus
	FromIndex  int
	ToStatus   GameStatus
	ToIndex    int
	StartedAt  time.Time
}

// Player is a participant of a game. Score never decreases.
type Player struct {
	ID            string    `json:"id"`
	GameID        string    `json:"gameId"`
	Username      string    `json:"username"`
	Avatar        string    `json:"avatar"`
	PersonalQuote string    `json:"personalQuote,omitempty"`
	Score         int       `json:"score"`
	IsHost        bool      `json:"isHost"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Answer is the write-once record of a player's response to one question.
type Answer struct {
	ID             string    `json:"id"`
	GameID         string    `json:"gameId"`
	PlayerID       string    `json:"playerId"`
	QuestionIndex  int       `json:"questionIndex"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	TimeTaken      int       `json:"timeTaken"`
	PointsEarned   int       `json:"pointsEarned"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// OptionShuffle is the option order shown to one player for one question.
// ShuffledOrder[i] is the original index of the option displayed at position i.
type OptionShuffle struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
	ShuffledOrder []int  `json:"shuffledOrder"`
}

// Question is static quiz content. CorrectIndex refers to the original option order.
type Question struct {
	ID           int      `json:"id" yaml:"id"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	TimeLimit    int      `json:"timeLimit" yaml:"timeLimit"` // seconds
	Special      bool     `json:"special,omitempty" yaml:"special"`
	ImageURL     string   `json:"imageUrl,omitempty" yaml:"imageUrl"`
	VideoLinks   []string `json:"videoLinks,omitempty" yaml:"videoLinks"`
}

// QuestionBank is an ordered list of questions.
type QuestionBank struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title,omitempty" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// QuestionView is what a player sees: options in that player's shuffled order, no answer key.
type QuestionView struct {
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Prompt     string    `json:"prompt"`
	Options    []string  `json:"options"`
	TimeLimit  int       `json:"timeLimit"`
	Deadline   time.Time `json:"deadline"`
	Special    bool      `json:"special,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	VideoLinks []string  `json:"videoLinks,omitempty"`
}

// HostQuestionView is the unshuffled question with its answer key.
type HostQuestionView struct {
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Question Question  `json:"question"`
	Deadline time.Time `json:"deadline"`
}

// AnswerResult summarizes a submission for the answering player.
type AnswerResult struct {
	QuestionIndex       int  `json:"questionIndex"`
	Correct             bool `json:"correct"`
	Timeout             bool `json:"timeout,omitempty"`
	Points              int  `json:"points"`
	TotalScore          int  `json:"totalScore"`
	TimeTaken           int  `json:"timeTaken"`
	CorrectDisplayIndex int  `json:"correctDisplayIndex"`
}

// Progress reports how many eligible players answered the current question.
type Progress struct {
	QuestionIndex int  `json:"questionIndex"`
	Answered      int  `json:"answered"`
	Eligible      int  `json:"eligible"`
	AllAnswered   bool `json:"allAnswered"`
}

// LeaderboardEntry is a ranked player.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Quote    string `json:"quote,omitempty"`
	Score    int    `json:"score"`
	IsHost   bool   `json:"isHost,omitempty"`
}

// Leaderboard captures the ordered scoreboard of a game.
type Leaderboard struct {
	GameID    string             `json:"gameId"`
	RoomCode  string             `json:"roomCode"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// PlayerSummary holds end-of-game statistics for one player.
type PlayerSummary struct {
	Player         Player  `json:"player"`
	Rank           int     `json:"rank"`
	TotalPlayers   int     `json:"totalPlayers"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalQuestions int     `json:"totalQuestions"`
	AverageTime    float64 `json:"averageTime"`
}

// ChangeTable names the record collection a Change refers to.
type ChangeTable string

const (
	TableGames   ChangeTable = "games"
	TablePlayers ChangeTable = "players"
	TableAnswers ChangeTable = "answers"
)

// ChangeKind is the kind of write that happened.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
)

// Change is a realtime notification. It carries no state; receivers re-read.
type Change struct {
	GameID string      `json:"gameId"`
	Table  ChangeTable `json:"table"`
	Kind   ChangeKind  `json:"kind"`
}
