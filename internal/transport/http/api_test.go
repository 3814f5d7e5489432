package http

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func TestRESTGameFlow(t *testing.T) {
	server, _ := newTestServer(t)

	var created createGameResponse
	do(t, server, http.MethodPost, "/api/games", "", map[string]any{"bankId": "trivia"}, http.StatusCreated, &created)
	if created.HostToken == "" || len(created.Game.RoomCode) != 6 {
		t.Fatalf("unexpected create response %+v", created)
	}
	code := created.Game.RoomCode

	var player domain.Player
	do(t, server, http.MethodPost, "/api/games/"+code+"/players", "", map[string]any{"username": "Alice", "avatar": "🦊"}, http.StatusCreated, &player)

	do(t, server, http.MethodPost, "/api/games/"+code+"/start", "", nil, http.StatusUnauthorized, nil)
	var game domain.Game
	do(t, server, http.MethodPost, "/api/games/"+code+"/start", created.HostToken, nil, http.StatusOK, &game)
	if game.Status != domain.StatusPlaying {
		t.Fatalf("expected playing, got %s", game.Status)
	}

	var host domain.HostQuestionView
	do(t, server, http.MethodGet, "/api/games/"+code+"/question/host", created.HostToken, nil, http.StatusOK, &host)

	var view domain.QuestionView
	do(t, server, http.MethodGet, "/api/games/"+code+"/question?playerId="+player.ID, "", nil, http.StatusOK, &view)
	correct := -1
	for i, opt := range view.Options {
		if opt == host.Question.Options[host.Question.CorrectIndex] {
			correct = i
		}
	}
	if correct < 0 {
		t.Fatalf("correct option missing from player view %+v", view)
	}

	var result domain.AnswerResult
	answer := map[string]any{"playerId": player.ID, "questionIndex": 0, "displayIndex": correct}
	do(t, server, http.MethodPost, "/api/games/"+code+"/answers", "", answer, http.StatusOK, &result)
	if !result.Correct || result.Points != domain.MaxPoints || result.CorrectDisplayIndex != correct {
		t.Fatalf("unexpected result %+v", result)
	}
	do(t, server, http.MethodPost, "/api/games/"+code+"/answers", "", answer, http.StatusConflict, nil)

	var progress domain.Progress
	do(t, server, http.MethodGet, "/api/games/"+code+"/progress", "", nil, http.StatusOK, &progress)
	if !progress.AllAnswered {
		t.Fatalf("expected all answered, got %+v", progress)
	}

	do(t, server, http.MethodPost, "/api/games/"+code+"/next", created.HostToken, nil, http.StatusOK, &game)
	do(t, server, http.MethodPost, "/api/games/"+code+"/timeouts", "", map[string]any{"playerId": player.ID, "questionIndex": 1}, http.StatusOK, &result)
	if !result.Timeout || result.TotalScore != domain.MaxPoints {
		t.Fatalf("unexpected timeout result %+v", result)
	}
	do(t, server, http.MethodPost, "/api/games/"+code+"/next", created.HostToken, nil, http.StatusOK, &game)
	if game.Status != domain.StatusFinished {
		t.Fatalf("expected finished after last question, got %s", game.Status)
	}

	var lb domain.Leaderboard
	do(t, server, http.MethodGet, "/api/games/"+code+"/leaderboard", "", nil, http.StatusOK, &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].Score != domain.MaxPoints {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	var summary domain.PlayerSummary
	do(t, server, http.MethodGet, "/api/games/"+code+"/players/"+player.ID+"/summary", "", nil, http.StatusOK, &summary)
	if summary.Rank != 1 || summary.CorrectAnswers != 1 || summary.TotalQuestions != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)

	do(t, server, http.MethodGet, "/api/games/999999", "", nil, http.StatusNotFound, nil)
	do(t, server, http.MethodPost, "/api/games", "", map[string]any{"bankId": "missing"}, http.StatusNotFound, nil)

	var first, second createGameResponse
	do(t, server, http.MethodPost, "/api/games", "", map[string]any{"bankId": "trivia"}, http.StatusCreated, &first)
	do(t, server, http.MethodPost, "/api/games", "", map[string]any{"bankId": "trivia"}, http.StatusCreated, &second)
	code := first.Game.RoomCode

	do(t, server, http.MethodPost, "/api/games/"+code+"/players", "", map[string]any{"username": "WayTooLongName", "avatar": "🦊"}, http.StatusBadRequest, nil)
	do(t, server, http.MethodPost, "/api/games/"+code+"/players", "", map[string]any{"username": "Bob"}, http.StatusBadRequest, nil)
	do(t, server, http.MethodPost, "/api/games/"+code+"/players", "", map[string]any{"username": "Bob", "avatar": "B"}, http.StatusBadRequest, nil)
	do(t, server, http.MethodPost, "/api/games", "", map[string]any{"hostName": "Hana", "hostAvatar": "H"}, http.StatusBadRequest, nil)

	do(t, server, http.MethodPost, "/api/games/"+code+"/start", second.HostToken, nil, http.StatusForbidden, nil)
	do(t, server, http.MethodPost, "/api/games/"+code+"/start", first.HostToken, nil, http.StatusConflict, nil)
	do(t, server, http.MethodPost, "/api/games/"+code+"/answers", "", map[string]any{"playerId": "p"}, http.StatusBadRequest, nil)
}

func TestAvatarCatalog(t *testing.T) {
	server, _ := newTestServer(t)
	var avatars []string
	do(t, server, http.MethodGet, "/api/avatars", "", nil, http.StatusOK, &avatars)
	if len(avatars) != len(domain.Avatars) || avatars[0] != domain.Avatars[0] {
		t.Fatalf("unexpected avatars %v", avatars)
	}

	var created createGameResponse
	do(t, server, http.MethodPost, "/api/games", "", nil, http.StatusCreated, &created)
	var player domain.Player
	do(t, server, http.MethodPost, "/api/games/"+created.Game.RoomCode+"/players", "", map[string]any{"username": "Cleo", "avatar": avatars[3]}, http.StatusCreated, &player)
	if player.Avatar != avatars[3] {
		t.Fatalf("avatar not kept: %q", player.Avatar)
	}
}

func TestQRCode(t *testing.T) {
	server, _ := newTestServer(t)
	var created createGameResponse
	do(t, server, http.MethodPost, "/api/games", "", nil, http.StatusCreated, &created)

	resp, err := http.Get(server.URL + "/api/games/" + created.Game.RoomCode + "/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected qr response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatalf("expected png body")
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.GameService) {
	t.Helper()
	def, err := memory.DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	store := memory.NewStore()
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(sampleBank(), def), time.Minute)
	service := app.NewGameService(store, store, banks, memory.NewBroker(), app.WithRand(rand.New(rand.NewSource(1))))
	issuer := auth.NewIssuer("test-secret", time.Hour)

	router := NewRouter(
		NewAPI(service, issuer, nil),
		NewWSHandler(service, issuer, nil),
		NewQRHandler(service, "http://quiz.test"),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

func do(t *testing.T, server *httptest.Server, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID: "trivia",
		Questions: []domain.Question{
			{ID: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectIndex: 1, TimeLimit: 30},
			{ID: 2, Prompt: "Capital of France?", Options: []string{"Lyon", "Paris", "Nice"}, CorrectIndex: 1, TimeLimit: 20},
		},
	}
}
