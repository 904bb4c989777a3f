package webhooks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

const defaultMaxBodyBytes = 1 << 20

// Handler is the HTTP face of the router. Success and accepted no-ops both
// answer 204 so the remote never retries a delivery we chose to drop.
type Handler struct {
	router  *Router
	logger  core.Logger
	maxBody int64
}

type HandlerOption func(*Handler)

func WithHandlerLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBody = limit
		}
	}
}

func NewHandler(router *Router, opts ...HandlerOption) (*Handler, error) {
	if router == nil {
		return nil, fmt.Errorf("webhooks: router is required")
	}
	_, logger := glog.Resolve("webhooks", nil, nil)
	handler := &Handler{
		router:  router,
		logger:  logger,
		maxBody: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(handler)
	}
	return handler, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, goerrors.New("method not allowed", goerrors.CategoryBadInput).
			WithCode(http.StatusMethodNotAllowed).
			WithTextCode(core.SyncErrorBadInput))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		h.writeError(w, core.NewBadInputError("webhooks: unreadable body", nil))
		return
	}
	event, err := DecodeEvent(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.router.Route(r.Context(), event)
	if err != nil {
		h.logger.Error("webhook routing failed",
			"event", event.Event,
			"error", err,
		)
		h.writeError(w, err)
		return
	}
	if !result.Handled {
		h.logger.Info("webhook accepted without handler",
			"event", event.Event,
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	textCode := core.SyncErrorInternal
	message := "internal error"
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code > 0 {
			code = rich.Code
		}
		if rich.TextCode != "" {
			textCode = rich.TextCode
		}
		message = rich.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":   message,
			"text_code": textCode,
		},
	})
}

var _ http.Handler = (*Handler)(nil)
