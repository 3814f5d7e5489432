package domain

import "errors"

var (
	// ErrGameNotFound is returned when no game matches a room code or id.
	ErrGameNotFound = errors.New("game not found")
	// ErrPlayerNotFound is returned when a player is unknown or belongs to another game.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrQuestionNotFound indicates a question index outside the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidBank is returned by Validate for malformed question banks.
	ErrInvalidBank = errors.New("invalid question bank")

	// ErrRoomCodeTaken is returned by storage when a generated room code collides.
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrInvalidTransition is returned for host actions not allowed in the current status.
	ErrInvalidTransition = errors.New("invalid game transition")
	// ErrStaleGame is returned when a concurrent host action changed the game first.
	ErrStaleGame = errors.New("game changed concurrently")
	// ErrNoPlayers is returned when starting a game nobody joined.
	ErrNoPlayers = errors.New("at least one player is required")
	// ErrGameFinished is returned when joining a finished game.
	ErrGameFinished = errors.New("game already finished")
	// ErrGameNotPlaying is returned for answers outside the playing status.
	ErrGameNotPlaying = errors.New("game is not in progress")
	// ErrQuestionClosed is returned for answers to a question that is no longer current.
	ErrQuestionClosed = errors.New("question is not open")
	// ErrAlreadyAnswered enforces one answer per player and question.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrInvalidOptionCount is returned when shuffling zero or fewer options.
	ErrInvalidOptionCount = errors.New("option count must be positive")
	// ErrInvalidPermutation is returned for permutations that are not a bijection on the options.
	ErrInvalidPermutation = errors.New("invalid option permutation")
	// ErrDisplayIndexOutOfRange is returned when a selection does not address a displayed option.
	ErrDisplayIndexOutOfRange = errors.New("display index out of range")
)
