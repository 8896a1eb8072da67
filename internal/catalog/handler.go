package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type ExercisesResponse struct {
	Exercises []Entry `json:"exercises"`
	Total     int     `json:"total"`
}

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{
		catalog: catalog,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/exercises", handler.HandleList).Methods("GET").Name("exercises")
	router.HandleFunc("/exercises/{id}", handler.HandleGet).Methods("GET").Name("exercise")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.list")
	defer span.End()

	list := handler.catalog.List()
	resp, err := json.Marshal(ExercisesResponse{
		Exercises: list,
		Total:     len(list),
	})
	if err != nil {
		log.Errorf("marshal exercises: %s", err)
		http.Error(w, "get exercises failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.get")
	defer span.End()

	vars := mux.Vars(r)
	id, ok := ParseExerciseID(vars["id"])
	if !ok {
		http.Error(w, "unknown exercise", http.StatusNotFound)
		return
	}

	entry, found := handler.catalog.Lookup(id)
	if !found {
		http.Error(w, "unknown exercise", http.StatusNotFound)
		return
	}

	resp, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("marshal exercise %s: %s", id, err)
		http.Error(w, "get exercise failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
