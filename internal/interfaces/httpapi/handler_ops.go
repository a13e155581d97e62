package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

type dailyBatchRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type generateSeasonRequest struct {
	StartDate string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
}

type heartbeatDTO struct {
	OK          bool           `json:"ok"`
	Day         string         `json:"day"`
	Fields      map[string]any `json:"fields"`
	LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
}

func (h *Handler) RunHeartbeatWatchdog(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "RunHeartbeatWatchdog")
	defer span.End()

	if h.services.Heartbeat == nil {
		writeError(ctx, w, notConfigured("heartbeat"))
		return
	}

	report, err := h.services.Heartbeat.RunWatchdog(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "heartbeat watchdog failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if !report.OK {
		status = http.StatusInternalServerError
	}
	writeSuccess(ctx, w, status, report)
}

func (h *Handler) GetHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "GetHeartbeat")
	defer span.End()

	if h.services.Heartbeat == nil {
		writeError(ctx, w, notConfigured("heartbeat"))
		return
	}

	hb, err := h.services.Heartbeat.Get(ctx, strings.TrimSpace(r.URL.Query().Get("day")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, heartbeatToDTO(hb))
}

func heartbeatToDTO(hb heartbeat.Heartbeat) heartbeatDTO {
	dto := heartbeatDTO{OK: true, Day: hb.Day, Fields: hb.Fields}
	if dto.Fields == nil {
		dto.Fields = map[string]any{}
	}
	if !hb.LastUpdated.IsZero() {
		updated := hb.LastUpdated.UTC()
		dto.LastUpdated = &updated
	}
	return dto
}

func (h *Handler) CreateDailyBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "CreateDailyBatch")
	defer span.End()

	if h.services.Batch == nil {
		writeError(ctx, w, notConfigured("batch"))
		return
	}

	var req dailyBatchRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.services.Batch.CreateDailyBatch(ctx, req.Date)
	if err != nil {
		h.logger.ErrorContext(ctx, "create daily batch failed", "day", req.Date, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) GenerateSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "GenerateSeason")
	defer span.End()

	if h.services.Schedule == nil {
		writeError(ctx, w, notConfigured("schedule"))
		return
	}

	var req generateSeasonRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := strings.TrimSpace(r.PathValue("leagueID"))
	result, err := h.services.Schedule.GenerateSeason(ctx, usecase.GenerateSeasonInput{
		LeagueID:  leagueID,
		StartDate: req.StartDate,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "generate season failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}
