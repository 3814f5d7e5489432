package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerSessionFollowsGame(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	game := createGame(t, env.service, "trivia")
	alice := join(t, env.service, game.RoomCode, "Alice")

	session, err := env.service.OpenPlayerSession(ctx, game.RoomCode, alice.ID)
	require.NoError(t, err)
	defer session.Close()

	room := nextEvent(t, session, app.EventRoom)
	assert.Equal(t, domain.StatusWaiting, room.Payload.(domain.Game).Status)
	players := nextEvent(t, session, app.EventPlayers)
	assert.Len(t, players.Payload.([]domain.Player), 1)

	_, err = session.Answer(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrQuestionClosed)

	game, err = env.service.StartGame(ctx, game.RoomCode)
	require.NoError(t, err)

	question := nextEvent(t, session, app.EventQuestion)
	view := question.Payload.(domain.QuestionView)
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, game.QuestionStartedAt.Add(30*time.Second), view.Deadline)

	res, err := session.Answer(ctx, correctDisplay(t, env.service, game, alice.ID))
	require.NoError(t, err)
	assert.True(t, res.Correct)

	// the only player answered, so the round is revealed
	lb := nextEvent(t, session, app.EventLeaderboard)
	assert.Equal(t, 1000, lb.Payload.(domain.Leaderboard).Entries[0].Score)

	_, err = env.service.NextQuestion(ctx, game.RoomCode)
	require.NoError(t, err)
	question = nextEvent(t, session, app.EventQuestion)
	assert.Equal(t, 1, question.Payload.(domain.QuestionView).Index)

	_, err = env.service.EndGame(ctx, game.RoomCode)
	require.NoError(t, err)
	finished := nextEvent(t, session, app.EventFinished)
	assert.Len(t, finished.Payload.(domain.Leaderboard).Entries, 1)

	session.Close()
	session.Close()
	assert.Equal(t, 0, env.broker.Subscribers(game.ID))
	for range session.Events() {
	}
}

func TestPlayerSessionRecordsTimeout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	game := createGame(t, env.service, "trivia")
	alice := join(t, env.service, game.RoomCode, "Alice")
	game, err := env.service.StartGame(ctx, game.RoomCode)
	require.NoError(t, err)

	// the countdown already ran out when the player connects
	env.clock.Advance(31 * time.Second)
	session, err := env.service.OpenPlayerSession(ctx, game.RoomCode, alice.ID)
	require.NoError(t, err)
	defer session.Close()

	ev := nextEvent(t, session, app.EventTimeout)
	res := ev.Payload.(domain.AnswerResult)
	assert.True(t, res.Timeout)
	assert.Equal(t, 0, res.QuestionIndex)

	answers, err := env.store.ListAnswers(ctx, game.ID, 0)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, domain.TimeoutOption, answers[0].SelectedOption)
}

func TestHostSessionRevealsOnDeadline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	game := createGame(t, env.service, "trivia")
	join(t, env.service, game.RoomCode, "Alice")
	join(t, env.service, game.RoomCode, "Bob")
	_, err := env.service.StartGame(ctx, game.RoomCode)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	session, err := env.service.OpenHostSession(ctx, game.RoomCode)
	require.NoError(t, err)
	defer session.Close()

	question := nextEvent(t, session, app.EventQuestion)
	assert.Equal(t, 1, question.Payload.(domain.HostQuestionView).Question.CorrectIndex)

	lb := nextEvent(t, session, app.EventLeaderboard)
	assert.Len(t, lb.Payload.(domain.Leaderboard).Entries, 2)

	_, err = session.Answer(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestOpenSessionRejectsStrangers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	game := createGame(t, env.service, "trivia")
	other := createGame(t, env.service, "trivia")
	bob := join(t, env.service, other.RoomCode, "Bob")

	_, err := env.service.OpenPlayerSession(ctx, game.RoomCode, bob.ID)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
	_, err = env.service.OpenHostSession(ctx, "000000")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestSessionStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	game := createGame(t, env.service, "trivia")
	alice := join(t, env.service, game.RoomCode, "Alice")

	ctx, cancel := context.WithCancel(context.Background())
	session, err := env.service.OpenPlayerSession(ctx, game.RoomCode, alice.ID)
	require.NoError(t, err)
	nextEvent(t, session, app.EventRoom)

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-session.Events():
			if !ok {
				// the subscription is released without waiting for Close
				assert.Equal(t, 0, env.broker.Subscribers(game.ID))
				session.Close()
				return
			}
		case <-deadline:
			t.Fatalf("session did not stop after cancel")
		}
	}
}

// nextEvent skips events until one of type typ arrives.
func nextEvent(t *testing.T, s *app.Session, typ app.EventType) app.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("session closed while waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}
