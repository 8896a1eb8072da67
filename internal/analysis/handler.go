package analysis

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

type CreateSessionRequest struct {
	UserID     string `json:"userId"`
	ExerciseID string `json:"exerciseId"`
}

type CreateSessionResponse struct {
	ID string `json:"id"`
}

type StopSessionResponse struct {
	ID      string `json:"id"`
	Stopped bool   `json:"stopped"`
}

type Handler struct {
	manager     *Manager
	createLimit func(next http.Handler) http.Handler
	upgrader    websocket.Upgrader
}

type HandlerParams struct {
	Manager *Manager
	// CreateLimit, if set, wraps session creation (rate limiting).
	CreateLimit    func(next http.Handler) http.Handler
	AllowedOrigins []string
}

func NewHandler(params HandlerParams) *Handler {
	allowed := make(map[string]bool, len(params.AllowedOrigins))
	for _, origin := range params.AllowedOrigins {
		allowed[origin] = true
	}
	return &Handler{
		manager:     params.Manager,
		createLimit: params.CreateLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non browser clients, like formsim
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	var create http.Handler = http.HandlerFunc(handler.HandleCreate)
	if handler.createLimit != nil {
		create = handler.createLimit(create)
	}
	router.Handle("/analysis/sessions", create).Methods("POST", "OPTIONS").Name("analysis-create")
	router.HandleFunc("/analysis/sessions/{id}", handler.HandleGet).Methods("GET").Name("analysis-get")
	router.HandleFunc("/analysis/sessions/{id}/stop", handler.HandleStop).Methods("POST", "OPTIONS").Name("analysis-stop")
	router.HandleFunc("/analysis/sessions/{id}/ws", handler.HandleWebsocket).Methods("GET").Name("analysis-ws")
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.analysis.create")
	defer span.End()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("create analysis session, unmarshal json params: %s", err)
		http.Error(w, "create session failed", http.StatusBadRequest)
		return
	}
	if !userIDRegex.MatchString(req.UserID) {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	id, err := handler.manager.Create(req.UserID, req.ExerciseID)
	switch {
	case errors.Is(err, ErrUnknownExercise):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrTooManySessions), errors.Is(err, ErrManagerClosed):
		log.Warnf("create analysis session: %s", err)
		http.Error(w, "no analysis capacity left, try again later", http.StatusServiceUnavailable)
		return
	case err != nil:
		log.Errorf("create analysis session: %s", err)
		http.Error(w, "create session failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, CreateSessionResponse{ID: id}, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.analysis.get")
	defer span.End()

	snapshot, err := handler.manager.Snapshot(mux.Vars(r)["id"])
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get analysis session: %s", err)
		http.Error(w, "get session failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot, http.StatusOK)
}

func (handler *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.analysis.stop")
	defer span.End()

	id := mux.Vars(r)["id"]
	err := handler.manager.Stop(id)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("stop analysis session [%s]: %s", id, err)
		http.Error(w, "stop session failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, StopSessionResponse{ID: id, Stopped: true}, http.StatusOK)
}

func (handler *Handler) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	client, err := handler.manager.Attach(id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrClientAttached):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		log.Errorf("attach analysis session [%s]: %s", id, err)
		http.Error(w, "attach failed", http.StatusInternalServerError)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		log.Debugf("analysis session [%s]: websocket upgrade: %s", id, err)
		handler.manager.Detach(id)
		return
	}

	if ip, err := pkg.ReadUserIP(r); err == nil {
		log.Debugf("analysis session [%s]: client attached from %s", id, ip)
	}
	newWSClient(conn, client, handler.manager).run(r.Context())
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	resp, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, status)
}
