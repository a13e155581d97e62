package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// storageEventRequest is either an S3 notification or a bare {"key": ...}.
type storageEventRequest struct {
	Key     string                 `json:"key"`
	Records []events.S3EventRecord `json:"Records"`
}

func (req storageEventRequest) objectKeys() []string {
	keys := make([]string, 0, len(req.Records)+1)
	if key := strings.TrimSpace(req.Key); key != "" {
		keys = append(keys, key)
	}
	for _, record := range req.Records {
		if record.EventName != "" && !strings.HasPrefix(record.EventName, "ObjectCreated") {
			continue
		}
		if key := s3ObjectKey(record.S3.Object); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// s3ObjectKey prefers the decoded key; notifications url-encode the raw one.
func s3ObjectKey(object events.S3Object) string {
	if key := strings.TrimSpace(object.URLDecodedKey); key != "" {
		return key
	}
	raw := strings.TrimSpace(object.Key)
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func (h *Handler) ReportResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "ReportResult")
	defer span.End()

	if h.services.Results == nil {
		writeError(ctx, w, notConfigured("result ingestion"))
		return
	}

	payload := map[string]any{}
	if err := decodeJSONBody(r, &payload, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.ReportInput{
		MatchID:    stringField(payload, "matchId"),
		LeagueID:   stringField(payload, "leagueId"),
		SeasonID:   stringField(payload, "seasonId"),
		ReplayPath: stringField(payload, "replayPath"),
		Payload:    payload,
	}
	result, err := h.services.Results.Report(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "report result failed", "league_id", input.LeagueID, "match_id", input.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) FinalizeStoredResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "FinalizeStoredResult")
	defer span.End()

	if h.services.Results == nil {
		writeError(ctx, w, notConfigured("result ingestion"))
		return
	}

	var req storageEventRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	keys := req.objectKeys()
	if len(keys) == 0 {
		writeError(ctx, w, fmt.Errorf("%w: no object key in storage event", usecase.ErrInvalidInput))
		return
	}

	results := make([]usecase.IngestResult, 0, len(keys))
	for _, key := range keys {
		result, err := h.services.Results.IngestStoredResult(ctx, key)
		if err != nil {
			h.logger.ErrorContext(ctx, "ingest stored result failed", "key", key, "error", err)
			writeError(ctx, w, err)
			return
		}
		results = append(results, result)
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"ok":      true,
		"results": results,
	})
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return strings.TrimSpace(value)
}
