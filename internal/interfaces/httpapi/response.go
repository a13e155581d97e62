package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorClass struct {
	target     error
	HTTPStatus int
	Reason     string
	Status     string
}

var (
	errorClasses  = []errorClass{
		{target: usecase.ErrInvalidInput, HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"},
		{target: usecase.ErrNotFound, HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"},
		{target: usecase.ErrUnauthorized, HTTPStatus: http.StatusUnauthorized, Reason: "unauthorized", Status: "UNAUTHENTICATED"},
		{target: usecase.ErrDependencyUnavailable, HTTPStatus: http.StatusServiceUnavailable, Reason: "dependencyUnavailable", Status: "UNAVAILABLE"},
	}
	internalClass = errorClass{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}
)

// classify returns the first class err wraps; anything else is internal.
func classify(err error) errorClass {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c
		}
	}
	return internalClass
}

func writeJSON(_ context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

// writeSuccess writes payload as is. Usecase results already carry ok:true.
func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	writeJSON(ctx, w, status, payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	class := classify(err)
	message := "internal server error"
	if class != internalClass {
		message = err.Error()
	}
	writeClass(ctx, w, class, message)
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	writeClass(ctx, w, internalClass, "internal server error")
}

func writeClass(ctx context.Context, w http.ResponseWriter, class errorClass, message string) {
	writeJSON(ctx, w, class.HTTPStatus, errorEnvelope{
		Error: errorBody{
			Code:    class.HTTPStatus,
			Status:  class.Status,
			Reason:  class.Reason,
			Message: message,
		},
	})
}
