package rest

import (
	"livepoll/internal/cache"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/handler"
	"livepoll/internal/transport/rest/middleware"
	"livepoll/internal/transport/ws"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	UserService      *service.UserService
	PollService      *service.PollService
	ChatService      *service.ChatService
	ClassroomService *service.ClassroomService
	PollArchive      cache.PollArchive
	WSHub            *ws.Hub
	AllowedOrigins   []string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	participantHandler := handler.NewParticipantHandler(c.UserService, c.ClassroomService)
	pollHandler := handler.NewPollHandler(c.ClassroomService, c.PollService, c.PollArchive)
	chatHandler := handler.NewChatHandler(c.ChatService, c.UserService, c.ClassroomService)
	wsHandler := ws.NewHandler(c.WSHub, c.ClassroomService, c.AllowedOrigins)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/participants", participantHandler.Create).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param or authenticate event)
	v1.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Moderator routes
	modRoutes := v1.NewRoute().Subrouter()
	modRoutes.Use(authMW.RequireModerator)

	modRoutes.HandleFunc("/polls", pollHandler.Create).Methods("POST", "OPTIONS")
	modRoutes.HandleFunc("/polls/history", pollHandler.History).Methods("GET", "OPTIONS")
	modRoutes.HandleFunc("/polls/archive", pollHandler.Archive).Methods("GET", "OPTIONS")
	modRoutes.HandleFunc("/polls/archive/{pollId}", pollHandler.ArchivedPoll).Methods("GET", "OPTIONS")
	modRoutes.HandleFunc("/polls/{pollId}/end", pollHandler.End).Methods("PUT", "OPTIONS")
	modRoutes.HandleFunc("/participants/{id}", participantHandler.Kick).Methods("DELETE", "OPTIONS")

	// Participant routes (any valid token)
	participantRoutes := v1.NewRoute().Subrouter()
	participantRoutes.Use(authMW.RequireParticipant)

	participantRoutes.HandleFunc("/participants", participantHandler.List).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/participants/stats", participantHandler.Stats).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/participants/{id}", participantHandler.Get).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/participants/{id}", participantHandler.Rename).Methods("PUT", "OPTIONS")

	participantRoutes.HandleFunc("/polls/active", pollHandler.Active).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/polls/{pollId}/answers", pollHandler.Answer).Methods("POST", "OPTIONS")
	participantRoutes.HandleFunc("/polls/{pollId}/results", pollHandler.Results).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/polls/{pollId}/stats", pollHandler.Stats).Methods("GET", "OPTIONS")

	participantRoutes.HandleFunc("/chat/history", chatHandler.History).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/chat/messages", chatHandler.Send).Methods("POST", "OPTIONS")
	participantRoutes.HandleFunc("/chat/participants", chatHandler.Participants).Methods("GET", "OPTIONS")
	participantRoutes.HandleFunc("/chat/stats", chatHandler.Stats).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(origins []string) mux.MiddlewareFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "Authorization"}, ", "))

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
