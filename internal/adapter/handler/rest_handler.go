package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hive-corporation/ioc-console/internal/adapter/exporter"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/service"
	"github.com/hive-corporation/ioc-console/internal/dashboard"
	"github.com/hive-corporation/ioc-console/internal/logging"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	IOCs       *service.IOCService
	Sessions   *service.SessionProvider
	Dashboard  *dashboard.Refresher
	Exporter   *exporter.Exporter
	Store      Pinger
	Logger     logging.Logger
	SessionTTL time.Duration
}

type RestHandler struct {
	iocs       *service.IOCService
	sessions   *service.SessionProvider
	dashboard  *dashboard.Refresher
	exporter   *exporter.Exporter
	store      Pinger
	log        logging.Logger
	sessionTTL time.Duration
}

func NewRestHandler(deps Dependencies) *RestHandler {
	return &RestHandler{
		iocs:       deps.IOCs,
		sessions:   deps.Sessions,
		dashboard:  deps.Dashboard,
		exporter:   deps.Exporter,
		store:      deps.Store,
		log:        deps.Logger.With("component", "rest"),
		sessionTTL: deps.SessionTTL,
	}
}

// Register mounts the API under /api/v1 on router.
func (h *RestHandler) Register(router *mux.Router) {
	router.Use(loggingMiddleware(h.log))

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)

	// Session required
	private := api.NewRoute().Subrouter()
	private.Use(h.authMiddleware)

	private.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)

	private.HandleFunc("/iocs", h.ListIOCs).Methods(http.MethodGet)
	private.HandleFunc("/iocs", h.CreateIOC).Methods(http.MethodPost)
	private.HandleFunc("/iocs/{id}", h.GetIOC).Methods(http.MethodGet)
	private.HandleFunc("/iocs/{id}", h.UpdateIOC).Methods(http.MethodPatch)
	private.HandleFunc("/iocs/{id}", h.DeleteIOC).Methods(http.MethodDelete)

	private.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)

	private.HandleFunc("/export", h.Export).Methods(http.MethodGet)
	private.HandleFunc("/export/publish", h.PublishExport).Methods(http.MethodPost)
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "ioc-api",
	}
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn(ctx, "health check failed", "error", err)
		response["status"] = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (h *RestHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store := newCookieStore(w, r, h.sessionTTL)
	user, err := h.sessions.Login(r.Context(), store, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: user, Token: store.issued})
}

func (h *RestHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(newCookieStore(w, r, h.sessionTTL))
	w.WriteHeader(http.StatusNoContent)
}

func (h *RestHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (h *RestHandler) ListIOCs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.Filter{
		Type:     domain.IOCType(q.Get("type")),
		Severity: domain.Severity(q.Get("severity")),
		Status:   domain.Status(q.Get("status")),
		Search:   q.Get("search"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid 'type' parameter")
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "invalid 'severity' parameter")
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid 'status' parameter")
		return
	}

	sort, err := domain.ParseSort(q.Get("sort"), q.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	iocs, err := h.iocs.List(r.Context(), filter, sort)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(iocs),
		"iocs":  iocs,
	})
}

func (h *RestHandler) GetIOC(w http.ResponseWriter, r *http.Request) {
	ioc, err := h.iocs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ioc)
}

func (h *RestHandler) CreateIOC(w http.ResponseWriter, r *http.Request) {
	var in domain.NewIOC
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := h.iocs.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/iocs/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *RestHandler) UpdateIOC(w http.ResponseWriter, r *http.Request) {
	var patch domain.IOCPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	updated, err := h.iocs.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RestHandler) DeleteIOC(w http.ResponseWriter, r *http.Request) {
	removed, err := h.iocs.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "ioc not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard recomputes the statistics, falling back to the last
// snapshot when the store is unavailable.
func (h *RestHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		latest, updatedAt, ok := h.dashboard.Latest()
		if !ok {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
		writeJSON(w, http.StatusOK, latest)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Export streams the whole collection as an attachment.
func (h *RestHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormatParam(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	export, err := h.exporter.Export(r.Context(), format)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.Header().Set("X-Export-Total", strconv.Itoa(export.Total))
	w.Header().Set("X-Export-Approved", strconv.Itoa(export.Approved))
	w.Header().Set("X-Export-High-Or-Critical", strconv.Itoa(export.HighOrCritical))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(export.Content)); err != nil {
		h.log.Warn(r.Context(), "failed to write export", "error", err)
	}
}

func (h *RestHandler) PublishExport(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormatParam(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	location, err := h.exporter.Publish(r.Context(), format)
	if err != nil {
		if errors.Is(err, exporter.ErrNoStore) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.log.Error(r.Context(), "export publish failed", "format", format, "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"format":   string(format),
		"location": location,
	})
}

// parseFormatParam reads ?format=, defaulting to txt.
func parseFormatParam(r *http.Request) (exporter.Format, error) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		return exporter.FormatTXT, nil
	}
	return exporter.ParseFormat(raw)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

type validationResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields"`
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "ioc not found")
	case errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported format (use 'txt', 'json', or 'csv')")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
