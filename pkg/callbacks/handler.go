package callbacks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// Tracker applies delivery reports. *notifications.Tracker implements it.
type Tracker interface {
	HandleDeliveryCallback(ctx context.Context, cb notifications.Callback) (notifications.CallbackResult, error)
}

// Handler receives provider delivery reports over HTTP.
type Handler struct {
	tracker Tracker
	secret  string
	maxAge  time.Duration
	maxBody int64
	logger  *slog.Logger
}

type Option func(*Handler)

// WithSecret requires every report to carry a valid HMAC signature.
func WithSecret(secret string) Option {
	return func(h *Handler) { h.secret = secret }
}

// WithMaxAge bounds how old a signed report may be.
func WithMaxAge(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.maxAge = d
		}
	}
}

func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(tracker Tracker, opts ...Option) (*Handler, error) {
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	h := &Handler{
		tracker: tracker,
		maxAge:  5 * time.Minute,
		maxBody: 64 * 1024,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes mounts POST /delivery.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/delivery", h.Delivery)
	return r
}

type response struct {
	Matched bool   `json:"matched"`
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Delivery handles one report. Unknown provider message ids are accepted
// with matched=false so providers do not retry them.
func (h *Handler) Delivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.readBody(r)
	if errors.Is(err, webhook.ErrInvalidSignature) {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "delivery callback rejected", logger.Error(err))
		writeJSON(w, http.StatusUnauthorized, response{Error: "invalid signature"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: "invalid payload"})
		return
	}

	var cb notifications.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: "invalid payload"})
		return
	}

	res, err := h.tracker.HandleDeliveryCallback(ctx, cb)
	switch {
	case errors.Is(err, notifications.ErrInvalidCallback):
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	case errors.Is(err, notifications.ErrInvalidTransition):
		h.logger.LogAttrs(ctx, slog.LevelWarn, "delivery callback conflicts with current state",
			logger.Channel(cb.Channel),
			logger.ProviderMessageID(cb.ProviderMessageID),
			logger.Error(err),
		)
		writeJSON(w, http.StatusConflict, response{
			Matched: res.Matched,
			Status:  string(res.Delivery.Status),
			Error:   "invalid status transition",
		})
		return
	case err != nil:
		h.logger.LogAttrs(ctx, slog.LevelError, "delivery callback failed",
			logger.Channel(cb.Channel),
			logger.ProviderMessageID(cb.ProviderMessageID),
			logger.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, response{Error: "internal error"})
		return
	}

	out := response{Matched: res.Matched, Applied: res.Applied}
	if res.Matched {
		out.Status = string(res.Delivery.Status)
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if h.secret != "" {
		return webhook.VerifyRequest(r, h.secret, h.maxAge, h.maxBody)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, webhook.ErrInvalidPayload
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
