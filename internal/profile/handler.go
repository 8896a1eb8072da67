package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=profile_test

type profileStore interface {
	Init(ctx context.Context, userID string) (_ Profile, err error)
	Update(ctx context.Context, userID string, u Update) (_ Profile, err error)
	LogWorkoutCompletion(ctx context.Context, userID string, calories int, now time.Time) (_ Profile, err error)
}

type workoutCompleteRequest struct {
	// Calories, when set, wins over the duration based estimate.
	Calories        *int       `json:"calories,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	Difficulty      Difficulty `json:"difficulty"`
}

type Handler struct {
	store profileStore
	now   func() time.Time
}

func NewHandler(store profileStore) *Handler {
	return &Handler{
		store: store,
		now:   time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/profile/{user}", handler.HandleGet).Methods("GET").Name("get-profile")
	router.HandleFunc("/profile/{user}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-profile")
	router.HandleFunc("/profile/{user}/metrics", handler.HandleMetrics).Methods("GET").Name("profile-metrics")
	router.HandleFunc("/profile/{user}/achievements", handler.HandleAchievements).Methods("GET").Name("profile-achievements")
	router.HandleFunc("/profile/{user}/workouts/complete", handler.HandleWorkoutComplete).Methods("POST", "OPTIONS").Name("workout-complete")
}

func userFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := mux.Vars(r)["user"]
	if !userIDRegex.MatchString(userID) {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.get")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	p, err := handler.store.Init(ctx, userID)
	if err != nil {
		log.Errorf("init profile [%s]: %s", userID, err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.update")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Errorf("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	p, err := handler.store.Update(ctx, userID, update)
	if errors.Is(err, ErrInvalidProfile) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("update profile [%s]: %s", userID, err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	log.Tracef("profile [%s] updated", userID)
	writeJSON(w, p, http.StatusOK)
}

func (handler *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.metrics")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	p, err := handler.store.Init(ctx, userID)
	if err != nil {
		log.Errorf("profile metrics [%s]: %s", userID, err)
		http.Error(w, "get profile metrics failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, ComputeMetrics(p), http.StatusOK)
}

func (handler *Handler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.achievements")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	p, err := handler.store.Init(ctx, userID)
	if err != nil {
		log.Errorf("profile achievements [%s]: %s", userID, err)
		http.Error(w, "get achievements failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, Achievements(p), http.StatusOK)
}

func (handler *Handler) HandleWorkoutComplete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.workoutComplete")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var req workoutCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("workout complete, unmarshal json params: %s", err)
		http.Error(w, "log workout failed", http.StatusBadRequest)
		return
	}

	var calories int
	switch {
	case req.Calories != nil:
		calories = *req.Calories
	case req.DurationSeconds > 0 && req.Difficulty.IsValid():
		calories = WorkoutCalories(time.Duration(req.DurationSeconds)*time.Second, req.Difficulty)
	default:
		http.Error(w, "error, calories or duration and difficulty required", http.StatusBadRequest)
		return
	}

	p, err := handler.store.LogWorkoutCompletion(ctx, userID, calories, handler.now())
	if errors.Is(err, ErrInvalidProfile) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("log workout [%s]: %s", userID, err)
		http.Error(w, "log workout failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout logged for [%s]: %d kcal, streak %d", userID, calories, p.Streak)
	writeJSON(w, p, http.StatusOK)
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
