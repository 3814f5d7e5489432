package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quiz-room-service/internal/domain"
)

// EventType tags the payload of a session Event.
type EventType string

const (
	EventRoom        EventType = "room"
	EventPlayers     EventType = "players"
	EventQuestion    EventType = "question"
	EventProgress    EventType = "progress"
	EventLeaderboard EventType = "leaderboard"
	EventTimeout     EventType = "timeout"
	EventFinished    EventType = "finished"
)

// Event is something a connected client should render.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Session follows one game for one connected client (a player or the host).
// It owns a notifier subscription and the countdown timer of the open question;
// Close releases both.
type Session struct {
	svc      *GameService
	code     string
	gameID   string
	playerID string
	host     bool

	changes     <-chan domain.Change
	unsubscribe func()
	events      chan Event
	done        chan struct{}
	ctxDone     <-chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once

	// shown is the question index on screen, -1 when none.
	shown atomic.Int64

	// owned by the run goroutine
	state  sessionState
	timer  *time.Timer
	timerC <-chan time.Time
}

type sessionState struct {
	status   domain.GameStatus
	index    int
	question int
	answered bool
	revealed bool
	finished bool
	roster   string
	progress domain.Progress
}

// OpenPlayerSession starts following a game on behalf of a player.
func (s *GameService) OpenPlayerSession(ctx context.Context, code, playerID string) (*Session, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.playerInGame(ctx, game, playerID); err != nil {
		return nil, err
	}
	return s.openSession(ctx, game, playerID, false)
}

// OpenHostSession starts following a game on behalf of its host.
func (s *GameService) OpenHostSession(ctx context.Context, code string) (*Session, error) {
	game, err := s.store.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, game, "", true)
}

func (s *GameService) openSession(ctx context.Context, game domain.Game, playerID string, host bool) (*Session, error) {
	changes, cancel, err := s.notifier.Subscribe(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	session := &Session{
		svc:         s,
		code:        game.RoomCode,
		gameID:      game.ID,
		playerID:    playerID,
		host:        host,
		changes:     changes,
		unsubscribe: cancel,
		events:      make(chan Event, 32),
		done:        make(chan struct{}),
		ctxDone:     ctx.Done(),
		stopped:     make(chan struct{}),
		state:       sessionState{index: -1, question: -1},
	}
	session.shown.Store(-1)
	go session.run(ctx)
	return session, nil
}

// Events is closed once the session stops.
func (ss *Session) Events() <-chan Event {
	return ss.events
}

// Answer submits a selection for the question currently shown.
func (ss *Session) Answer(ctx context.Context, displayIndex int) (domain.AnswerResult, error) {
	if ss.host {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	shown := int(ss.shown.Load())
	if shown < 0 {
		return domain.AnswerResult{}, domain.ErrQuestionClosed
	}
	return ss.svc.SubmitAnswer(ctx, ss.code, AnswerRequest{
		PlayerID:      ss.playerID,
		QuestionIndex: shown,
		DisplayIndex:  displayIndex,
	})
}

// Close stops the timer, detaches the subscription and waits for the session to stop.
func (ss *Session) Close() {
	ss.closeOnce.Do(func() {
		close(ss.done)
		ss.unsubscribe()
	})
	<-ss.stopped
}

func (ss *Session) run(ctx context.Context) {
	defer close(ss.events)
	defer close(ss.stopped)
	defer ss.unsubscribe()
	defer ss.disarm()

	ss.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ss.done:
			return
		case _, ok := <-ss.changes:
			if !ok {
				return
			}
			ss.reconcile(ctx)
		case <-ss.timerC:
			ss.timerC = nil
			ss.onDeadline(ctx)
		}
	}
}

// reconcile re-reads the game and emits whatever differs from what was last emitted.
func (ss *Session) reconcile(ctx context.Context) {
	game, err := ss.svc.store.GameByID(ctx, ss.gameID)
	if err != nil {
		ss.logDropped("reload game", err)
		return
	}
	if game.Status != ss.state.status || game.CurrentQuestionIndex != ss.state.index {
		ss.state.status = game.Status
		ss.state.index = game.CurrentQuestionIndex
		ss.emit(EventRoom, game)
	}

	players, err := ss.svc.store.ListPlayers(ctx, ss.gameID)
	if err != nil {
		ss.logDropped("reload players", err)
		return
	}
	if roster := rosterKey(players); roster != ss.state.roster {
		ss.state.roster = roster
		ss.emit(EventPlayers, players)
	}

	switch game.Status {
	case domain.StatusFinished:
		if !ss.state.finished {
			ss.state.finished = true
			ss.shown.Store(-1)
			ss.disarm()
			ss.emit(EventFinished, ss.svc.leaderboardFor(game, players))
		}
		return
	case domain.StatusWaiting:
		return
	}

	if ss.state.question != game.CurrentQuestionIndex {
		if err := ss.openQuestion(ctx, game); err != nil {
			ss.logDropped("open question", err)
			return
		}
	}

	progress, answered, err := ss.svc.progressFor(ctx, game, players)
	if err != nil {
		ss.logDropped("reload answers", err)
		return
	}
	if progress != ss.state.progress {
		ss.state.progress = progress
		ss.emit(EventProgress, progress)
	}
	if !ss.host && !ss.state.answered && answered[ss.playerID] {
		ss.state.answered = true
		ss.disarm()
	}
	if progress.AllAnswered && !ss.state.revealed {
		ss.reveal(game, players)
	}
}

// openQuestion resets the per-question state and arms the countdown for the time left.
func (ss *Session) openQuestion(ctx context.Context, game domain.Game) error {
	bank, err := ss.svc.banks.GetBank(ctx, game.BankID)
	if err != nil {
		return err
	}
	q, err := bank.Question(game.CurrentQuestionIndex)
	if err != nil {
		return err
	}

	var view any
	if ss.host {
		view, err = hostView(game, bank)
	} else {
		view, err = ss.svc.questionView(ctx, game, bank, ss.playerID)
	}
	if err != nil {
		return err
	}

	ss.state.question = game.CurrentQuestionIndex
	ss.state.answered = false
	ss.state.revealed = false
	ss.shown.Store(int64(game.CurrentQuestionIndex))
	ss.arm(deadline(game, q).Sub(ss.svc.now()))
	ss.emit(EventQuestion, view)
	return nil
}

func (ss *Session) onDeadline(ctx context.Context) {
	game, err := ss.svc.store.GameByID(ctx, ss.gameID)
	if err != nil {
		ss.logDropped("reload game", err)
		return
	}
	if game.Status != domain.StatusPlaying || game.CurrentQuestionIndex != ss.state.question {
		ss.reconcile(ctx)
		return
	}

	if !ss.host && !ss.state.answered {
		result, err := ss.svc.RecordTimeout(ctx, ss.code, ss.playerID, ss.state.question)
		switch {
		case err == nil:
			ss.state.answered = true
			ss.emit(EventTimeout, result)
		case errors.Is(err, domain.ErrAlreadyAnswered):
			ss.state.answered = true
		default:
			ss.logDropped("record timeout", err)
		}
	}
	if ss.host && !ss.state.revealed {
		players, err := ss.svc.store.ListPlayers(ctx, ss.gameID)
		if err != nil {
			ss.logDropped("reload players", err)
			return
		}
		ss.reveal(game, players)
	}
}

func (ss *Session) reveal(game domain.Game, players []domain.Player) {
	ss.state.revealed = true
	if ss.host {
		ss.disarm()
	}
	ss.emit(EventLeaderboard, ss.svc.leaderboardFor(game, players))
}

func (ss *Session) emit(typ EventType, payload any) {
	select {
	case ss.events <- Event{Type: typ, Payload: payload}:
	case <-ss.done:
	case <-ss.ctxDone:
	}
}

func (ss *Session) arm(d time.Duration) {
	ss.disarm()
	if d < 0 {
		d = 0
	}
	ss.timer = time.NewTimer(d)
	ss.timerC = ss.timer.C
}

func (ss *Session) disarm() {
	if ss.timer != nil {
		ss.timer.Stop()
		ss.timer = nil
	}
	ss.timerC = nil
}

// logDropped records background refresh failures; they are never surfaced to the client.
func (ss *Session) logDropped(what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	ss.svc.log.Warn("session refresh failed", "room", ss.code, "player", ss.playerID, "step", what, "err", err)
}

func rosterKey(players []domain.Player) string {
	var b strings.Builder
	for _, p := range players {
		b.WriteString(p.ID)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.Score))
		b.WriteByte(';')
	}
	return b.String()
}
