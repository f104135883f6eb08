package trackapi

import (
	"net/http"
	"strconv"
	"time"

	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/httpx"
	"pulse/cmd/internal/repo"
	"pulse/cmd/internal/tracking/ingest"
	"pulse/cmd/internal/tracking/session"
)

// registerStreams wires the thin per-stream CRUD endpoints. POST goes
// through the writers so single-item submissions get the same coercion
// as batch items; PUT is an explicit edit and accepts no coercion.
func (h *Handler) registerStreams(mux *http.ServeMux) {
	register(mux, "activities", h, activityTable, "event_time",
		h.createActivity, h.updateActivity)
	register(mux, "session-events", h, sessionEventTable, "event_time",
		h.createSessionEvent, h.updateSessionEvent)
	register(mux, "app-usages", h, appUsageTable, "start_time",
		h.createAppUsage, h.updateAppUsage)
	register(mux, "system-metrics", h, metricTable, "measurement_time",
		h.createMetric, h.updateMetric)
}

func register[T any](mux *http.ServeMux, base string, h *Handler, table repo.Table[T], orderBy string, create, update http.HandlerFunc) {
	mux.HandleFunc("GET /api/"+base, listHandler(h, table, orderBy))
	mux.HandleFunc("GET /api/"+base+"/{id}", getHandler(h, table))
	mux.HandleFunc("POST /api/"+base, create)
	mux.HandleFunc("PUT /api/"+base+"/{id}", update)
	mux.HandleFunc("DELETE /api/"+base+"/{id}", removeHandler(h, table))
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

func listHandler[T any](h *Handler, table repo.Table[T], orderBy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}

		q := r.URL.Query()
		var where string
		var args []any
		if raw := q.Get("session_id"); raw != "" {
			sid, ok := ids.Normalize(raw)
			if !ok {
				httpx.WriteErr(w, h.log, session.ErrInvalidInput)
				return
			}
			where = "session_id = $1"
			args = append(args, sid)
		}
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("size"))
		page, size = repo.ClampPage(page, size)

		ctx := r.Context()
		items, err := table.GetAllPaginated(ctx, repo.Q(ctx, h.pool), where, orderBy, page, size, args...)
		if err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		httpx.WriteJSON(w, http.StatusOK, listResponse[T]{Items: items, Page: page, Size: size})
	}
}

func getHandler[T any](h *Handler, table repo.Table[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}
		id, ok := ids.Normalize(r.PathValue("id"))
		if !ok {
			httpx.WriteErr(w, h.log, session.ErrInvalidInput)
			return
		}
		ctx := r.Context()
		item, err := table.GetByID(ctx, repo.Q(ctx, h.pool), id)
		if err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, item)
	}
}

func removeHandler[T any](h *Handler, table repo.Table[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}
		id, ok := ids.Normalize(r.PathValue("id"))
		if !ok {
			httpx.WriteErr(w, h.log, session.ErrInvalidInput)
			return
		}
		ctx := r.Context()
		if err := table.Remove(ctx, repo.Q(ctx, h.pool), id); err != nil {
			httpx.WriteErr(w, h.log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- create (writer-backed) ----

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	var in ingest.ActivityEventInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	e, err := h.writers.WriteActivity(r.Context(), "", in, id.UserID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toActivityRow(e))
}

func (h *Handler) createSessionEvent(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	var in ingest.SessionEventInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	e, err := h.writers.WriteSessionEvent(r.Context(), "", in, id.UserID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSessionEventRow(e))
}

func (h *Handler) createAppUsage(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	var in ingest.AppUsageInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	u, err := h.writers.WriteAppUsage(r.Context(), "", in, id.UserID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppUsageRow(u))
}

func (h *Handler) createMetric(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	var in ingest.SystemMetricInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	m, err := h.writers.WriteMetric(r.Context(), "", in, id.UserID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toMetricRow(m))
}

// ---- update (no coercion) ----

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	id, row, ok := loadForUpdate(h, w, r, activityTable)
	if !ok {
		return
	}
	var in ingest.ActivityEventInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if in.EventType != "" {
		if !ingest.ValidActivityEventType(in.EventType) {
			httpx.WriteValidationError(w, "unknown event_type", []string{"event_type: unknown"})
			return
		}
		row.EventType = in.EventType
	}
	if in.EventTime != nil {
		row.EventTime = in.EventTime.UTC()
	}
	if in.AppID != nil {
		row.AppID = in.AppID
	}
	if in.EventData != nil {
		row.EventData = in.EventData
	}
	stampUpdate(&row.UpdatedAt, &row.UpdatedBy, id.UserID)
	finishUpdate(h, w, r, activityTable, &row)
}

func (h *Handler) updateSessionEvent(w http.ResponseWriter, r *http.Request) {
	id, row, ok := loadForUpdate(h, w, r, sessionEventTable)
	if !ok {
		return
	}
	var in ingest.SessionEventInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if in.EventType != "" {
		if !ingest.ValidSessionEventType(in.EventType) {
			httpx.WriteValidationError(w, "unknown event_type", []string{"event_type: unknown"})
			return
		}
		row.EventType = in.EventType
	}
	if in.EventTime != nil {
		row.EventTime = in.EventTime.UTC()
	}
	if in.EventData != nil {
		row.EventData = in.EventData
	}
	stampUpdate(&row.UpdatedAt, &row.UpdatedBy, id.UserID)
	finishUpdate(h, w, r, sessionEventTable, &row)
}

func (h *Handler) updateAppUsage(w http.ResponseWriter, r *http.Request) {
	id, row, ok := loadForUpdate(h, w, r, appUsageTable)
	if !ok {
		return
	}
	var in ingest.AppUsageInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if in.WindowTitle != nil {
		row.WindowTitle = in.WindowTitle
	}
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		if !end.After(row.StartTime) {
			httpx.WriteValidationError(w, "end_time must be after start_time",
				[]string{"end_time: must be after start_time"})
			return
		}
		row.EndTime = &end
		row.IsActive = false
	}
	if in.IsActive != nil {
		row.IsActive = *in.IsActive
	}
	stampUpdate(&row.UpdatedAt, &row.UpdatedBy, id.UserID)
	finishUpdate(h, w, r, appUsageTable, &row)
}

func (h *Handler) updateMetric(w http.ResponseWriter, r *http.Request) {
	id, row, ok := loadForUpdate(h, w, r, metricTable)
	if !ok {
		return
	}
	var in ingest.SystemMetricInput
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if in.CPUUsage != nil {
		row.CPUUsage = ingest.ClampPercent(*in.CPUUsage)
	}
	if in.GPUUsage != nil {
		row.GPUUsage = ingest.ClampPercent(*in.GPUUsage)
	}
	if in.MemoryUsage != nil {
		row.MemoryUsage = ingest.ClampPercent(*in.MemoryUsage)
	}
	if in.MeasurementTime != nil {
		row.MeasurementTime = in.MeasurementTime.UTC()
	}
	stampUpdate(&row.UpdatedAt, &row.UpdatedBy, id.UserID)
	finishUpdate(h, w, r, metricTable, &row)
}

func loadForUpdate[T any](h *Handler, w http.ResponseWriter, r *http.Request, table repo.Table[T]) (auth.Identity, T, bool) {
	var zero T
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return auth.Identity{}, zero, false
	}
	rowID, ok := ids.Normalize(r.PathValue("id"))
	if !ok {
		httpx.WriteErr(w, h.log, session.ErrInvalidInput)
		return auth.Identity{}, zero, false
	}
	ctx := r.Context()
	row, err := table.GetByID(ctx, repo.Q(ctx, h.pool), rowID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return auth.Identity{}, zero, false
	}
	return id, row, true
}

func finishUpdate[T any](h *Handler, w http.ResponseWriter, r *http.Request, table repo.Table[T], row *T) {
	ctx := r.Context()
	if err := table.Update(ctx, repo.Q(ctx, h.pool), row); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, row)
}

func stampUpdate(at *time.Time, by **string, actor string) {
	*at = time.Now().UTC()
	if actor != "" {
		*by = &actor
	}
}
