package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	maxPageSize = 100
	// keeps the row offset well inside int range
	maxPage = 10_000
)

type ListResponse struct {
	Sessions []*SessionRecord `json:"sessions"`
	Total    int              `json:"total"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/analysis/history/{user}/page/{page}/size/{size}", handler.HandleList).
		Methods("GET").
		Name("analysis-history")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.list")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["user"]
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		log.Tracef("handle get history page, from <page> param: %s", err)
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		log.Tracef("handle get history page, from <size> param: %s", err)
		http.Error(w, "parse form error, parameter <size>", http.StatusBadRequest)
		return
	}

	if page < 1 || page > maxPage {
		http.Error(w, "invalid page (has to be between 1 and 10000)", http.StatusBadRequest)
		return
	}
	if size < 1 || size > maxPageSize {
		http.Error(w, "invalid size (has to be between 1 and 100)", http.StatusBadRequest)
		return
	}

	records, total, err := handler.service.List(ctx, ListParams{
		UserID: userID,
		Page:   page,
		Size:   size,
	})
	if err != nil {
		log.Errorf("list session history [%s]: %s", userID, err)
		http.Error(w, "failed to get session history", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{
		Sessions: records,
		Total:    total,
	})
	if err != nil {
		log.Errorf("marshal session history: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
