package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/model"
	"github.com/vyrodovalexey/restresource/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// maxBodySize caps create and update request bodies.
const maxBodySize = 1 << 16

// RESTHandler handles REST API requests for todos.
type RESTHandler struct {
	store     store.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance. A nil publisher
// discards change events.
func NewRESTHandler(s store.Store, publisher Publisher, logger *zap.Logger) *RESTHandler {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &RESTHandler{
		store:     s,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/todos", h.ListTodos).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/todos", h.CreateTodo).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/todos/{id}", h.GetTodo).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/todos/{id}", h.UpdateTodo).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/todos/{id}", h.DeleteTodo).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ListTodos handles GET /api/v1/todos requests.
//
// Supported query parameters: q (description substring), completed
// (true|false) and limit (positive integer).
func (h *RESTHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.logger.Warn("invalid list query", zap.String("query", r.URL.RawQuery), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	todos, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list todos", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to retrieve todos")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(todos))
}

// GetTodo handles GET /api/v1/todos/{id} requests.
func (h *RESTHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	todo, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get todo")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(todo))
}

// CreateTodo handles POST /api/v1/todos requests.
func (h *RESTHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	if err := input.ValidateCreate(); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.handleStoreError(w, err, "create todo")
		return
	}

	h.publisher.Publish(model.NewChangeEvent(model.EventCreated, todo.ID))
	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(todo))
}

// UpdateTodo handles PUT /api/v1/todos/{id} requests. Fields missing from
// the body keep their current value.
func (h *RESTHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	if err := input.ValidateUpdate(); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		h.handleStoreError(w, err, "update todo")
		return
	}

	h.publisher.Publish(model.NewChangeEvent(model.EventUpdated, todo.ID))
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(todo))
}

// DeleteTodo handles DELETE /api/v1/todos/{id} requests and responds with
// the removed todo.
func (h *RESTHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	todo, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "delete todo")
		return
	}

	h.publisher.Publish(model.NewChangeEvent(model.EventDeleted, todo.ID))
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(todo))
}

func (h *RESTHandler) decodeInput(w http.ResponseWriter, r *http.Request) (*model.TodoInput, bool) {
	var input model.TodoInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &input, true
}

var (
	errInvalidCompleted = errors.New("completed must be true or false")
	errInvalidLimit     = errors.New("limit must be a positive integer")
)

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	query := r.URL.Query()
	filter := store.ListFilter{Query: query.Get("q")}

	if raw := query.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return store.ListFilter{}, errInvalidCompleted
		}
		filter.Completed = &completed
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return store.ListFilter{}, errInvalidLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "todo not found")
	case errors.Is(err, store.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, "invalid todo ID")
	case errors.Is(err, store.ErrAlreadyExists):
		h.writeError(w, http.StatusConflict, "todo already exists")
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
