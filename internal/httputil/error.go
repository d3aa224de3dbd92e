package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/AdamBeresnev/op-arena/internal/service"
	"github.com/bytedance/sonic"
	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a request carries no usable credential.
var ErrUnauthorized = errors.New("unauthorized")

type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind       string     `json:"kind"`
	Message    string     `json:"message"`
	MemberID   *uuid.UUID `json:"member_id,omitempty"`
	MemberName string     `json:"member_name,omitempty"`
	TeamID     *uuid.UUID `json:"team_id,omitempty"`
	TeamName   string     `json:"team_name,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, envelope{Data: data})
}

// WriteError renders err for the client. Rejections keep their kind and
// context; anything unexpected is logged and answered with an opaque message.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	if rej, ok := service.AsRejection(err); ok {
		WriteJSON(w, RejectionStatus(rej.Kind), envelope{Error: &errorBody{
			Kind:       string(rej.Kind),
			Message:    rej.Error(),
			MemberID:   rej.MemberID,
			MemberName: rej.MemberName,
			TeamID:     rej.TeamID,
			TeamName:   rej.TeamName,
		}})
		return
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		writeKind(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case crerrors.Is(err, service.ErrInvalidInput):
		writeKind(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case crerrors.Is(err, service.ErrRegistrationUnavailable):
		logging.Default().WarnContext(ctx, "registration unavailable", "error", err)
		writeKind(w, http.StatusServiceUnavailable, "UNAVAILABLE", "registration is busy, try again")
	case errors.Is(err, context.Canceled):
		writeKind(w, 499, "CANCELLED", "request cancelled")
	default:
		InternalServerError(ctx, w, "request failed", err)
	}
}

// RejectionStatus maps a rejection kind to its HTTP status.
func RejectionStatus(kind service.RejectionKind) int {
	switch kind {
	case service.KindForbidden, service.KindNotCaptain:
		return http.StatusForbidden
	case service.KindTournamentNotFound, service.KindEntryNotFound,
		service.KindTeamNotFound, service.KindTargetUserNotFound:
		return http.StatusNotFound
	case service.KindInvalidTeamSize, service.KindInvalidMembers:
		return http.StatusBadRequest
	case service.KindRegistrationClosed, service.KindDeadlinePassed, service.KindTournamentFull,
		service.KindAlreadyRegistered, service.KindMemberAlreadyRegistered:
		return http.StatusConflict
	case service.KindRankRequired:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeKind(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, envelope{Error: &errorBody{Kind: kind, Message: msg}})
}

func InternalServerError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	logging.Default().ErrorContext(ctx, msg, "error", err)
	writeKind(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

func BadRequest(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if err != nil {
		logging.Default().WarnContext(ctx, "bad request", "message", msg, "error", err)
	} else {
		logging.Default().WarnContext(ctx, "bad request", "message", msg)
	}
	writeKind(w, http.StatusBadRequest, "BAD_REQUEST", msg)
}

func NotFound(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if err != nil {
		logging.Default().WarnContext(ctx, "not found", "message", msg, "error", err)
	} else {
		logging.Default().WarnContext(ctx, "not found", "message", msg)
	}
	writeKind(w, http.StatusNotFound, "NOT_FOUND", msg)
}
