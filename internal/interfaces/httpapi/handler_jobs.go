package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// HeaderQStashMessageID marks a request delivered by the delayed queue.
const HeaderQStashMessageID = "Upstash-Message-Id"

var internalJobDispatchUnsafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

type startMatchRequest struct {
	MatchID         string `json:"matchId" validate:"required"`
	LeagueID        string `json:"leagueId" validate:"required"`
	ForceRedispatch bool   `json:"forceRedispatch"`
	DispatchID      string `json:"dispatchId"`
}

type finalizeRequest struct {
	MatchID    string `json:"matchId" validate:"required"`
	LeagueID   string `json:"leagueId" validate:"required"`
	Attempt    int    `json:"attempt" validate:"gte=0"`
	DispatchID string `json:"dispatchId"`
}

func (h *Handler) LockLineups(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "LockLineups")
	defer span.End()

	if h.services.Lock == nil {
		writeError(ctx, w, notConfigured("lineup lock"))
		return
	}

	result, err := h.services.Lock.LockWindowSnapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "lock lineups failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) OrchestrateTonight(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "OrchestrateTonight")
	defer span.End()

	if h.services.Dispatch == nil {
		writeError(ctx, w, notConfigured("dispatch"))
		return
	}

	result, err := h.services.Dispatch.DispatchTonight(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "orchestrate tonight failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "StartMatch")
	defer span.End()

	if h.services.Dispatch == nil {
		writeError(ctx, w, notConfigured("dispatch"))
		return
	}

	var req startMatchRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	event := jobscheduler.DispatchEvent{
		DispatchID: req.DispatchID,
		JobName:    jobscheduler.JobStartMatch,
		JobPath:    usecase.PathStartMatch,
		LeagueID:   req.LeagueID,
		MatchID:    req.MatchID,
		Payload: map[string]any{
			"matchId":         req.MatchID,
			"leagueId":        req.LeagueID,
			"forceRedispatch": req.ForceRedispatch,
		},
	}

	result, err := h.services.Dispatch.StartMatch(ctx, usecase.StartMatchInput{
		MatchID:         req.MatchID,
		LeagueID:        req.LeagueID,
		ForceRedispatch: req.ForceRedispatch,
	})
	h.recordQueuedDispatch(ctx, r, event, err)
	if err != nil {
		h.logger.WarnContext(ctx, "start match failed", "league_id", req.LeagueID, "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) FinalizeWatchdog(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "FinalizeWatchdog")
	defer span.End()

	if h.services.Watchdog == nil {
		writeError(ctx, w, notConfigured("watchdog"))
		return
	}

	var req finalizeRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	event := jobscheduler.DispatchEvent{
		DispatchID: req.DispatchID,
		JobName:    jobscheduler.JobFinalizeWatchdog,
		JobPath:    usecase.PathFinalizeWatchdog,
		LeagueID:   req.LeagueID,
		MatchID:    req.MatchID,
		Attempt:    req.Attempt,
		Payload: map[string]any{
			"matchId":  req.MatchID,
			"leagueId": req.LeagueID,
			"attempt":  req.Attempt,
		},
	}

	result, err := h.services.Watchdog.Finalize(ctx, usecase.FinalizeInput{
		MatchID:  req.MatchID,
		LeagueID: req.LeagueID,
		Attempt:  req.Attempt,
	})
	h.recordQueuedDispatch(ctx, r, event, err)
	if err != nil {
		h.logger.WarnContext(ctx, "finalize watchdog failed",
			"league_id", req.LeagueID,
			"match_id", req.MatchID,
			"attempt", req.Attempt,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

// recordQueuedDispatch closes the audit row opened when the task was
// enqueued. Calls without a queue message id are operator calls and are
// not audited.
func (h *Handler) recordQueuedDispatch(ctx context.Context, r *http.Request, event jobscheduler.DispatchEvent, runErr error) {
	if h.services.Dispatches == nil {
		return
	}
	messageID := strings.TrimSpace(r.Header.Get(HeaderQStashMessageID))
	if messageID == "" {
		return
	}

	event.OccurredAt = time.Now().UTC()
	if strings.TrimSpace(event.DispatchID) == "" {
		event.DispatchID = buildQueuedDispatchID(event.JobName, messageID)
	}
	event.Payload["messageId"] = messageID
	event.Status = jobscheduler.StatusCompleted
	if runErr != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = runErr.Error()
	}
	event.TraceID, event.SpanID = traceIDs(ctx)

	h.services.Dispatches.RecordDispatchEvent(ctx, event)
}

func buildQueuedDispatchID(jobName, messageID string) string {
	return "queued-" + sanitizeDispatchPart(jobName) + "-" + sanitizeDispatchPart(messageID)
}

func sanitizeDispatchPart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return internalJobDispatchUnsafeRegex.ReplaceAllString(value, "-")
}
