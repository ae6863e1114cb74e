package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"payidcheck/internal/payid"
	"payidcheck/internal/store"
)

type validateRequest struct {
	PayID   string          `json:"payid"`
	Options *requestOptions `json:"options"`
}

type requestOptions struct {
	CheckDomain   *bool `json:"check_domain"`
	StrictCase    *bool `json:"strict_case"`
	IncludePrefix *bool `json:"include_prefix"`
	CheckLiveness bool  `json:"check_liveness"`
}

type registerRequest struct {
	PayID string `json:"payid"`
}

type validateResponse struct {
	Valid   bool              `json:"valid"`
	Usable  *bool             `json:"usable,omitempty"`
	PayID   *payid.Identifier `json:"payid,omitempty"`
	Display string            `json:"display,omitempty"`
	Record  string            `json:"record_type,omitempty"`
	Error   *apiError         `json:"error,omitempty"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// options applies request overrides on top of the configured defaults.
func (a *App) options(req *requestOptions) payid.Options {
	opts := a.Config.ValidationOptions()
	if req == nil {
		return opts
	}
	if req.CheckDomain != nil {
		opts.CheckDomain = *req.CheckDomain
	}
	if req.StrictCase != nil {
		opts.StrictCase = *req.StrictCase
	}
	if req.IncludePrefix != nil {
		opts.IncludePrefix = *req.IncludePrefix
	}
	return opts
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.Store == nil || a.Queue == nil {
		http.Error(w, "backends not configured", http.StatusServiceUnavailable)
		return
	}
	if err := a.Store.Ping(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := a.Queue.Ping(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (a *App) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeRequest(w, r, validateRequestSchema, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := a.validator().Validate(req.PayID, a.options(req.Options))
	a.Metrics.ObserveValidation(err)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	resp := validateResponse{Valid: true, PayID: &id, Display: id.String()}
	if req.Options == nil || !req.Options.CheckLiveness {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if a.Checker == nil {
		http.Error(w, "liveness checks are not configured", http.StatusServiceUnavailable)
		return
	}
	recordType, err := a.Checker.Check(r.Context(), id.Domain().ACE())
	usable := err == nil
	resp.Usable = &usable
	if err != nil {
		if kind, ok := payid.KindOf(err); !ok || kind != payid.KindUsable {
			a.logger().Error("liveness check failed", "payid", id.Canonical(), "error", err)
			http.Error(w, "liveness check failed", http.StatusBadGateway)
			return
		}
		a.Metrics.ObserveLiveness("unusable")
		resp.Error = errorBody(err)
		writeJSON(w, http.StatusFailedDependency, resp)
		return
	}
	a.Metrics.ObserveLiveness("usable")
	resp.Record = string(recordType)
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeRequest(w, r, registerRequestSchema, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := a.validator().Validate(req.PayID, a.Config.ValidationOptions())
	a.Metrics.ObserveValidation(err)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()
	rec, err := a.Store.UpsertPayID(ctx, id)
	if err != nil {
		a.logger().Error("register payid failed", "payid", id.Canonical(), "error", err)
		http.Error(w, "failed to register payid", http.StatusInternalServerError)
		return
	}
	if a.Config.Liveness.Enabled {
		if err := a.Queue.PushLivenessJob(ctx, rec.Canonical); err != nil {
			// The record stays pending; re-registering enqueues it again.
			a.logger().Warn("enqueue liveness job failed", "payid", rec.Canonical, "error", err)
		}
	}
	a.logger().Info("payid registered", "payid", rec.Canonical, "id", rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request) {
	opts := a.Config.ValidationOptions()
	opts.StrictCase = false
	id, err := a.validator().Validate(r.PathValue("payid"), opts)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	rec, err := a.Store.GetPayID(r.Context(), id.Canonical())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, validateResponse{Error: &apiError{Kind: "not_found", Message: err.Error()}})
		return
	}
	if err != nil {
		a.logger().Error("get payid failed", "payid", id.Canonical(), "error", err)
		http.Error(w, "failed to load payid", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *App) handleList(w http.ResponseWriter, r *http.Request) {
	status := store.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := a.Store.ListPayIDs(r.Context(), status, limit)
	if err != nil {
		a.logger().Error("list payids failed", "error", err)
		http.Error(w, "failed to list payids", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payids": records})
}

func errorBody(err error) *apiError {
	var perr *payid.Error
	if errors.As(err, &perr) {
		return &apiError{Kind: perr.Kind.String(), Message: perr.Reason}
	}
	return &apiError{Kind: "error", Message: err.Error()}
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Valid: false, Error: errorBody(err)})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, validateResponse{Error: &apiError{Kind: "bad_request", Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
