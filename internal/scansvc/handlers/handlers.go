package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	scans      *service.ScanService
	events     *service.EventService
	provisions *service.ProvisionService

	apiKey    string
	staticDir string
	port      string
	tokenAuth *jwtauth.JWTAuth
}

func NewHandler(scans *service.ScanService, events *service.EventService, provisions *service.ProvisionService,
	apiKey, staticDir, port string) *Handler {
	return &Handler{
		scans:      scans,
		events:     events,
		provisions: provisions,
		apiKey:     apiKey,
		staticDir:  staticDir,
		port:       port,
	}
}

// Response is the envelope for health and admin endpoints.
type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// FeedResponse is what the reader UI consumes: a flag, an optional message and
// the latest events.
type FeedResponse struct {
	Success bool            `json:"success,omitempty"`
	Error   bool            `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    []*models.Event `json:"data"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	writeJSON(w, rsp.Code, rsp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "scan service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

// feed writes the outcome together with the newest events. A failed event read
// still answers, with an empty list.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request, code int, rsp FeedResponse) {
	events, err := h.events.List(r.Context())
	if err != nil {
		log.Errorf("Error [EventService.List] %s", err)
	}
	rsp.Data = feedData(events)
	writeJSON(w, code, rsp)
}

// feedData keeps data a JSON array for readers, never null.
func feedData(events []*models.Event) []*models.Event {
	if events == nil {
		return []*models.Event{}
	}
	return events
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		log.Errorf("Error [EventService.List] %s", err)
		writeJSON(w, http.StatusInternalServerError, FeedResponse{Error: true, Message: "storage failure", Data: feedData(nil)})
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Success: true, Data: feedData(events)})
}

func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := decode(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, FeedResponse{Error: true, Message: "invalid request body", Data: feedData(nil)})
		return
	}

	if strings.TrimSpace(body.Message) == "" {
		ev, err := h.events.Fail(r.Context(), "message required")
		if err != nil {
			log.Errorf("Error [EventService.Fail] %s", err)
			writeJSON(w, http.StatusInternalServerError, FeedResponse{Error: true, Message: "storage failure", Data: feedData(nil)})
			return
		}
		h.feed(w, r, http.StatusOK, FeedResponse{Error: true, Message: ev.Message})
		return
	}

	if _, err := h.events.Append(r.Context(), body.Message); err != nil {
		log.Errorf("Error [EventService.Append] %s", err)
		writeJSON(w, http.StatusInternalServerError, FeedResponse{Error: true, Message: "storage failure", Data: feedData(nil)})
		return
	}
	h.feed(w, r, http.StatusOK, FeedResponse{Success: true})
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req service.ScanRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, FeedResponse{Error: true, Message: "invalid request body", Data: feedData(nil)})
		return
	}

	out, err := h.scans.Scan(r.Context(), req)
	if err != nil {
		h.feed(w, r, http.StatusInternalServerError, FeedResponse{Error: true, Message: "storage failure"})
		return
	}

	if out.Success {
		h.feed(w, r, http.StatusOK, FeedResponse{Success: true})
		return
	}
	h.feed(w, r, http.StatusOK, FeedResponse{Error: true, Message: out.Message})
}

// Index serves the front end entry point; other static files are public.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SerialNumber string `json:"serialNumber"`
	}
	if err := decode(r, &body); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	card, err := h.provisions.CreateCard(r.Context(), body.SerialNumber)
	if err != nil {
		h.adminError(w, "unable to create card", err)
		return
	}

	h.CreateResponse(w, Response{Message: "card created", Code: http.StatusCreated, Data: card})
}

func (h *Handler) GrantAllowance(w http.ResponseWriter, r *http.Request) {
	var req service.GrantRequest
	if err := decode(r, &req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	created, err := h.provisions.Grant(r.Context(), req)
	if err != nil {
		h.adminError(w, "unable to grant allowance", err)
		return
	}

	h.CreateResponse(w, Response{Message: "allowances granted", Code: http.StatusCreated, Data: created})
}

func (h *Handler) ListAllowances(w http.ResponseWriter, r *http.Request) {
	allowances, err := h.provisions.Allowances(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		h.adminError(w, "unable to list allowances", err)
		return
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: allowances})
}

func (h *Handler) adminError(w http.ResponseWriter, message string, err error) {
	code, detail := http.StatusInternalServerError, "storage failure"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		code, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		code, detail = http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrDuplicate):
		code, detail = http.StatusConflict, err.Error()
	default:
		log.Errorf("Error [admin] %s: %s", message, err)
	}
	h.CreateResponse(w, Response{Message: message, Code: code, Error: detail})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
