package http

import (
	"net/http"
	"net/url"
	"strings"

	"quiz-room-service/internal/app"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// QRHandler renders a PNG QR code of a room's join link.
type QRHandler struct {
	service   *app.GameService
	publicURL string
}

// NewQRHandler builds join links from publicURL; when empty they are derived from the request.
func NewQRHandler(service *app.GameService, publicURL string) *QRHandler {
	return &QRHandler{service: service, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func (h *QRHandler) Serve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	game, err := h.service.GameByCode(r.Context(), ps.ByName("code"))
	if err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}

	png, err := qrcode.Encode(h.JoinURL(r, game.RoomCode), qrcode.Medium, qrSize)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "qr generation failed"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// JoinURL is the link players open to join code.
func (h *QRHandler) JoinURL(r *http.Request, code string) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join?code=" + url.QueryEscape(code)
}
