package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/domain"

	"github.com/julienschmidt/httprouter"
)

const (
	maxUsernameRunes = 10
	maxQuoteRunes    = 50
	maxBodyBytes     = 1 << 16
)

var errBadRequest = errors.New("bad request")

// API serves the REST surface of the quiz rooms.
type API struct {
	service *app.GameService
	issuer  *auth.Issuer
	log     *slog.Logger
}

func NewAPI(service *app.GameService, issuer *auth.Issuer, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{service: service, issuer: issuer, log: log}
}

// NewRouter wires the REST API, the QR endpoint and the websocket stream.
func NewRouter(api *API, ws *WSHandler, qr *QRHandler) *httprouter.Router {
	mux := httprouter.New()

	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	mux.GET("/api/avatars", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, domain.Avatars)
	})
	mux.POST("/api/games", api.createGame)
	mux.GET("/api/games/:code", api.getGame)
	mux.GET("/api/games/:code/qr", qr.Serve)
	mux.GET("/api/games/:code/players", api.listPlayers)
	mux.POST("/api/games/:code/players", api.joinGame)
	mux.GET("/api/games/:code/players/:playerId/summary", api.playerSummary)
	mux.POST("/api/games/:code/start", api.hostAction(api.service.StartGame))
	mux.POST("/api/games/:code/next", api.hostAction(api.service.NextQuestion))
	mux.POST("/api/games/:code/end", api.hostAction(api.service.EndGame))
	mux.GET("/api/games/:code/question", api.currentQuestion)
	mux.GET("/api/games/:code/question/host", api.hostQuestion)
	mux.POST("/api/games/:code/answers", api.submitAnswer)
	mux.POST("/api/games/:code/timeouts", api.recordTimeout)
	mux.GET("/api/games/:code/progress", api.progress)
	mux.GET("/api/games/:code/leaderboard", api.leaderboard)

	mux.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		api.log.Error("handler panic", "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
	return mux
}

type createGameRequest struct {
	BankID     string `json:"bankId"`
	HostName   string `json:"hostName"`
	HostAvatar string `json:"hostAvatar"`
}

type createGameResponse struct {
	Game      domain.Game    `json:"game"`
	Host      *domain.Player `json:"host,omitempty"`
	HostToken string         `json:"hostToken"`
}

func (a *API) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createGameRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.HostAvatar != "" && !domain.IsAvatar(req.HostAvatar) {
		a.fail(w, r, fmt.Errorf("%w: avatar must be one of /api/avatars", errBadRequest))
		return
	}
	game, host, err := a.service.CreateGame(r.Context(), app.CreateGameRequest{
		BankID:     req.BankID,
		HostName:   strings.TrimSpace(req.HostName),
		HostAvatar: req.HostAvatar,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, err := a.issuer.Issue(game.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log.Info("game created", "room", game.RoomCode, "bank", game.BankID)
	writeJSON(w, http.StatusCreated, createGameResponse{Game: game, Host: host, HostToken: token})
}

func (a *API) getGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	game, err := a.service.GameByCode(r.Context(), ps.ByName("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (a *API) listPlayers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	players, err := a.service.Players(r.Context(), ps.ByName("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

type joinRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Quote    string `json:"quote"`
}

func (r joinRequest) validate() error {
	name := strings.TrimSpace(r.Username)
	if name == "" || utf8.RuneCountInString(name) > maxUsernameRunes {
		return fmt.Errorf("%w: username must be 1-%d characters", errBadRequest, maxUsernameRunes)
	}
	if !domain.IsAvatar(r.Avatar) {
		return fmt.Errorf("%w: avatar must be one of /api/avatars", errBadRequest)
	}
	if utf8.RuneCountInString(r.Quote) > maxQuoteRunes {
		return fmt.Errorf("%w: quote must be at most %d characters", errBadRequest, maxQuoteRunes)
	}
	return nil
}

func (a *API) joinGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	player, err := a.service.JoinGame(r.Context(), ps.ByName("code"), app.JoinRequest{
		Username: strings.TrimSpace(req.Username),
		Avatar:   req.Avatar,
		Quote:    strings.TrimSpace(req.Quote),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (a *API) hostAction(action func(ctx context.Context, code string) (domain.Game, error)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if err := a.authorizeHost(r, code); err != nil {
			a.fail(w, r, err)
			return
		}
		game, err := action(r.Context(), code)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func (a *API) currentQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := a.service.CurrentQuestion(r.Context(), ps.ByName("code"), r.URL.Query().Get("playerId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) hostQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if err := a.authorizeHost(r, code); err != nil {
		a.fail(w, r, err)
		return
	}
	view, err := a.service.HostQuestion(r.Context(), code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerRequest struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex *int   `json:"questionIndex"`
	DisplayIndex  *int   `json:"displayIndex"`
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.PlayerID == "" || req.QuestionIndex == nil || req.DisplayIndex == nil {
		a.fail(w, r, fmt.Errorf("%w: playerId, questionIndex and displayIndex are required", errBadRequest))
		return
	}
	result, err := a.service.SubmitAnswer(r.Context(), ps.ByName("code"), app.AnswerRequest{
		PlayerID:      req.PlayerID,
		QuestionIndex: *req.QuestionIndex,
		DisplayIndex:  *req.DisplayIndex,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type timeoutRequest struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex *int   `json:"questionIndex"`
}

func (a *API) recordTimeout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req timeoutRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.PlayerID == "" || req.QuestionIndex == nil {
		a.fail(w, r, fmt.Errorf("%w: playerId and questionIndex are required", errBadRequest))
		return
	}
	result, err := a.service.RecordTimeout(r.Context(), ps.ByName("code"), req.PlayerID, *req.QuestionIndex)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) progress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	progress, err := a.service.Progress(r.Context(), ps.ByName("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lb, err := a.service.Leaderboard(r.Context(), ps.ByName("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) playerSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	summary, err := a.service.PlayerSummary(r.Context(), ps.ByName("code"), ps.ByName("playerId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// authorizeHost requires a bearer host token issued for the game behind code.
func (a *API) authorizeHost(r *http.Request, code string) error {
	token := bearerToken(r)
	if token == "" {
		return auth.ErrUnauthorized
	}
	game, err := a.service.GameByCode(r.Context(), code)
	if err != nil {
		return err
	}
	return a.issuer.Authorize(token, game.ID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrDisplayIndexOutOfRange),
		errors.Is(err, domain.ErrInvalidOptionCount):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrGameNotFound),
		errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrBankNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStaleGame),
		errors.Is(err, domain.ErrNoPlayers),
		errors.Is(err, domain.ErrGameFinished),
		errors.Is(err, domain.ErrGameNotPlaying),
		errors.Is(err, domain.ErrQuestionClosed),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrRoomCodeTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
