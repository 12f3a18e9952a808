package signalling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CallsForFriends/signalling-server/internal/auth"
	"github.com/CallsForFriends/signalling-server/internal/config"
	"github.com/CallsForFriends/signalling-server/internal/metrics"
	"github.com/CallsForFriends/signalling-server/internal/origin"
	"github.com/CallsForFriends/signalling-server/internal/ratelimit"
)

// WebSocketServer owns the signalling endpoint: it upgrades connections,
// runs the dual-path authentication handshake and drives the per-connection
// read loop that feeds the router.
//
// Authentication is either an Authorization: Bearer header on the upgrade
// request, or a first-message AUTH envelope. An unauthenticated connection
// that sends anything other than AUTH is told AUTH_FAILED and closed.
type WebSocketServer struct {
	cfg      config.Config
	provider auth.Provider
	registry *Registry
	router   *Router
	sender   *Sender
	clock    ratelimit.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewWebSocketServer(cfg config.Config, provider auth.Provider, registry *Registry, router *Router, sender *Sender, clock ratelimit.Clock, logger *slog.Logger, m *metrics.Metrics) *WebSocketServer {
	s := &WebSocketServer{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		router:   router,
		sender:   sender,
		clock:    clock,
		log:      logger,
		metrics:  m,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

var (
	errAuthRequired  = errors.New("authentication required")
	errTokenRequired = errors.New("token is required")
)

// checkOrigin allows browser connections from the configured allowlist,
// same-host origins, and non-browser clients that send no Origin at all.
func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}
	normalized, host, ok := origin.Normalize(header)
	if !ok {
		return false
	}
	return origin.Allowed(normalized, host, r.Host, s.cfg.AllowedOrigins)
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	sess := NewSession(uuid.NewString(), conn)
	log := s.log.With("conn", sess.ID(), "remote", r.RemoteAddr)
	s.metrics.Inc(metrics.Connections)
	log.Info("connection established")

	var (
		authenticated bool
		userID        int64
	)
	defer func() {
		if authenticated {
			if s.registry.Unregister(userID, sess) {
				log.Info("user disconnected", "user", userID)
			}
		}
		_ = conn.Close()
	}()

	// Header path: a Bearer token on the upgrade request authenticates the
	// connection before any frame is exchanged.
	switch identity, err := auth.FromRequest(r.Context(), s.provider, r); {
	case err == nil:
		authenticated = true
		userID = identity.UserID
		s.register(userID, sess, log)
		_ = s.sender.SendTo(sess, Envelope{Type: TypeAuthSuccess, To: userID})
	case errors.Is(err, auth.ErrMissingCredentials):
		// Fall through to the in-band AUTH handshake.
	default:
		s.authFailed(sess, log, err)
		return
	}

	limiter := ratelimit.NewTokenBucket(s.clock, int64(s.cfg.MaxMessagesPerSecond), int64(s.cfg.MaxMessagesPerSecond))

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			_ = sess.Close(websocket.CloseUnsupportedData, "Expected text message")
			return
		}
		if !limiter.Allow() {
			log.Warn("rate limit exceeded")
			_ = sess.Close(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		env, perr := ParseEnvelope(msg)

		if !authenticated {
			if perr != nil || env.Type != TypeAuth {
				s.authFailed(sess, log, errAuthRequired)
				return
			}
			identity, err := s.authenticate(r, env)
			if err != nil {
				s.authFailed(sess, log, err)
				return
			}
			authenticated = true
			userID = identity.UserID
			s.register(userID, sess, log)
			_ = s.sender.SendTo(sess, Envelope{Type: TypeAuthSuccess, To: userID})
			continue
		}

		s.registry.RecordActivity(userID, s.clock.Now())

		if perr != nil {
			s.metrics.Inc(metrics.MessagesRejected)
			_ = s.sender.SendTo(sess, ErrorEnvelope(userID, "Invalid message format"))
			continue
		}

		// The client's from field is untrusted and always replaced.
		env.From = userID
		if err := s.route(env); err != nil {
			_ = s.sender.SendTo(sess, ErrorEnvelope(userID, translateRouteError(log, err)))
		}
	}
}

// ParseEnvelope decodes one wire message.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (s *WebSocketServer) authenticate(r *http.Request, env Envelope) (auth.Identity, error) {
	var p authPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return auth.Identity{}, fmt.Errorf("invalid auth payload: %w", err)
		}
	}
	if p.Token == "" {
		return auth.Identity{}, errTokenRequired
	}
	return s.provider.ValidateToken(r.Context(), p.Token)
}

// register binds the session and evicts any previous session for the same
// user. The newer login always wins.
func (s *WebSocketServer) register(userID int64, sess Session, log *slog.Logger) {
	prev := s.registry.Register(userID, sess, s.clock.Now())
	if prev != nil && prev != sess {
		log.Info("evicting duplicate session", "user", userID, "prev_conn", prev.ID())
		s.metrics.Inc(metrics.DuplicateSessionEvicted)
		_ = prev.Close(websocket.ClosePolicyViolation, "Duplicate session")
	}
	log.Info("user authenticated", "user", userID)
}

// authFailed reports AUTH_FAILED in-band, then closes the connection. The
// wire message never leaks provider internals.
func (s *WebSocketServer) authFailed(sess Session, log *slog.Logger, err error) {
	s.metrics.Inc(metrics.AuthFailure)
	log.Warn("authentication failed", "err", err)

	message := "Authentication failed"
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		message = "Invalid token"
	case errors.Is(err, errAuthRequired):
		message = "Authentication required"
	case errors.Is(err, errTokenRequired):
		message = "Token is required"
	}
	payload, _ := json.Marshal(errorPayload{Message: message})
	_ = s.sender.SendTo(sess, Envelope{Type: TypeAuthFailed, Payload: payload})
	_ = sess.Close(websocket.ClosePolicyViolation, message)
}

// route runs the router with a panic guard so one poisonous message cannot
// take down the connection's read loop, let alone the process.
func (s *WebSocketServer) route(env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while handling message", "type", env.Type, "panic", r)
			err = fmt.Errorf("panic while handling %s: %v", env.Type, r)
		}
	}()
	return s.router.Route(env)
}

// translateRouteError maps routing failures to the wire error message.
// Unexpected failures are logged in full but reported generically.
func translateRouteError(log *slog.Logger, err error) string {
	var invalid *InvalidMessageError
	if errors.As(err, &invalid) {
		return "Invalid message: " + invalid.Reason
	}
	var offline *OfflineError
	if errors.As(err, &offline) {
		return offline.Error()
	}
	log.Error("message handling failed", "err", err)
	return "Internal server error"
}
