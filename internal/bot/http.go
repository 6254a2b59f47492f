package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moderator/internal/auth"
	"moderator/internal/models"
	"moderator/internal/panel"
	"moderator/internal/telegram"
	"moderator/web"
)

// SecretTokenHeader carries the webhook secret on every update delivery
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// PanelAssembler builds the panel payload of an authorized request
type PanelAssembler interface {
	Assemble(ctx context.Context, chatID int64) (models.PanelData, error)
}

// HTTPConfig holds the HTTP surface settings
type HTTPConfig struct {
	WebhookPath   string
	WebhookSecret string
	// AllowedOrigin is sent in CORS headers of the panel API
	AllowedOrigin string
	// RateLimit is the panel API request rate per user and second; 0 disables it
	RateLimit float64
}

// HTTPServer handles HTTP requests for the web panel and the webhook
type HTTPServer struct {
	bot           *Bot
	authenticator *auth.Authenticator
	assembler     PanelAssembler
	limiter       *userLimiter
	config        HTTPConfig
	logger        *zap.Logger
}

// NewHTTPServer creates the HTTP surface of the bot
func NewHTTPServer(bot *Bot, authenticator *auth.Authenticator, assembler PanelAssembler, config HTTPConfig, logger *zap.Logger) *HTTPServer {
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "*"
	}
	return &HTTPServer{
		bot:           bot,
		authenticator: authenticator,
		assembler:     assembler,
		limiter:       newUserLimiter(config.RateLimit),
		config:        config,
		logger:        logger,
	}
}

// Router returns the handler serving every route
func (hs *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(hs.logger))

	r.Get("/health", hs.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Static page of the web panel
	r.Get("/", hs.handleIndex)
	r.Get("/web-app", hs.handleIndex)

	if hs.config.WebhookPath != "" {
		r.Post(hs.config.WebhookPath, hs.handleWebhook)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors(hs.config.AllowedOrigin))
		r.Get("/chat_info", hs.handleChatInfo)
	})

	return r
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleIndex serves the panel HTML from embedded filesystem
func (hs *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	content, err := web.Content.ReadFile("index.html")
	if err != nil {
		hs.logger.Error("Failed to read embedded index.html", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

// handleWebhook accepts one update and processes it in the background
func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if hs.config.WebhookSecret != "" {
		given := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(hs.config.WebhookSecret)) != 1 {
			hs.logger.Warn("Webhook request with wrong secret token", zap.String("remote_addr", r.RemoteAddr))
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		hs.logger.Warn("Error decoding webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Process update in background to respond quickly to Telegram
	hs.bot.Dispatch(context.WithoutCancel(r.Context()), update)

	w.WriteHeader(http.StatusOK)
}

// handleChatInfo returns the panel data of one chat to one of its administrators
func (hs *HTTPServer) handleChatInfo(w http.ResponseWriter, r *http.Request) {
	identity, err := hs.authenticator.FromHeader(r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			hs.writeError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		hs.logger.Warn("Failed to validate init data",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		hs.writeError(w, http.StatusForbidden, "Invalid init data")
		return
	}

	rawChatID := r.URL.Query().Get("chat_id")
	if rawChatID == "" {
		hs.writeError(w, http.StatusBadRequest, "chat_id is required")
		return
	}
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil || chatID == 0 {
		hs.writeError(w, http.StatusBadRequest, "Invalid chat_id")
		return
	}

	if !hs.limiter.Allow(identity.UserID) {
		hs.writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	if !hs.bot.authorizer.IsAdmin(r.Context(), identity.UserID, chatID) {
		hs.logger.Warn("Panel access without admin rights",
			zap.Int64("user_id", identity.UserID),
			zap.Int64("chat_id", chatID),
		)
		hs.writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	data, err := hs.assembler.Assemble(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, panel.ErrNotManaged) {
			hs.writeError(w, http.StatusNotFound, "Chat is not managed by the bot")
			return
		}
		hs.logger.Error("Failed to assemble panel data",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", identity.UserID),
			zap.Error(err),
		)
		hs.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hs.logger.Info("Panel data served",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", identity.UserID),
		zap.Int("members", len(data.Members)),
	)
	hs.writeJSON(w, http.StatusOK, data)
}

func (hs *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	hs.writeJSON(w, status, map[string]string{"error": message})
}

func (hs *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	panelRequests.WithLabelValues(strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hs.logger.Warn("Failed to write response", zap.Error(err))
	}
}
