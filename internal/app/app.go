package app

import (
	"context"
	"fmt"
	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/events"
	"livepoll/internal/repository"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest"
	"livepoll/internal/transport/ws"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// App is the composed classroom server
type App struct {
	Config      *config.Config
	Registry    *service.SessionRegistry
	Polls       *service.PollService
	Chat        *service.ChatService
	Users       *service.UserService
	Auth        *service.AuthService
	Classroom   *service.ClassroomService
	Coordinator *service.Coordinator
	Hub         *ws.Hub
	History     repository.HistoryRepo
	Archive     cache.PollArchive

	redis     *redis.Client
	publisher events.Publisher
	handler   http.Handler
}

// New wires every component from cfg. Redis and NATS are connected only
// when their addresses are configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// Optional Redis mirror of ended polls
	if cfg.RedisAddr != "" {
		addr := strings.TrimPrefix(cfg.RedisAddr, "redis://")
		a.redis = redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := a.redis.Ping(pingCtx).Result(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("app: ping redis at %s: %w", addr, err)
		}
		a.Archive = cache.NewPollArchive(a.redis, cfg.ArchiveTTL, cfg.ArchiveLimit)
		slog.Info("app: connected to redis", "addr", addr)
	}

	// Optional NATS mirror of outbound events
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			a.closeClients()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.publisher = pub
		slog.Info("app: connected to nats", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	} else {
		a.publisher = &events.NoopPublisher{}
	}

	// Transport and broadcast
	a.Hub = ws.NewHub()
	a.Registry = service.NewSessionRegistry()
	a.Coordinator = service.NewCoordinator(a.Registry, a.Hub)
	a.Coordinator.SetPublisher(a.publisher, cfg.NATSSubjectPrefix)

	// Services
	a.Auth = service.NewAuthService(service.AuthConfig{
		Secret:            cfg.JWTSecret,
		ModeratorUsername: cfg.ModeratorUsername,
		ModeratorPassword: cfg.ModeratorPassword,
		TokenTTL:          cfg.TokenTTL,
	})
	a.History = repository.NewHistoryRepo()
	a.Polls = service.NewPollService(a.History, a.Coordinator,
		service.WithDirectory(a.Registry),
		service.WithDefaultDuration(int(cfg.DefaultPollDuration/time.Second)),
	)
	if a.Archive != nil {
		a.Polls.SetArchiver(a.Archive)
	}
	a.Chat = service.NewChatService(a.Registry, cfg.ChatMaxMessages, cfg.ChatMaxLength)
	a.Users = service.NewUserService(a.Registry, a.Auth)
	a.Classroom = service.NewClassroomService(a.Registry, a.Polls, a.Chat, a.Auth, a.Coordinator, cfg.RequireToken)

	a.handler = rest.NewRouter(&rest.Container{
		AuthService:      a.Auth,
		UserService:      a.Users,
		PollService:      a.Polls,
		ChatService:      a.Chat,
		ClassroomService: a.Classroom,
		PollArchive:      a.Archive,
		WSHub:            a.Hub,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
	})

	if cfg.UsesDevSecret() {
		slog.Warn("app: using the built-in JWT secret; set LIVEPOLL_JWT_SECRET in production")
	}
	return a, nil
}

// Handler returns the HTTP handler serving REST and WebSocket routes
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close disconnects every session and releases external clients
func (a *App) Close() {
	a.Coordinator.Close()
	a.Hub.Shutdown()
	a.closeClients()
}

func (a *App) closeClients() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("app: close publisher", "err", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("app: close redis", "err", err)
		}
	}
}
