// Package api exposes the gateway operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-notification-gateway/internal/notifier"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Notifier is satisfied by *notifier.Service.
type Notifier interface {
	SendNotification(ctx context.Context, req *notification.NotificationRequest, origin notifier.Origin) []notification.ResponseEnvelope
	SendWhatsApp(ctx context.Context, payload notification.WhatsAppPayload) (string, error)
	SendTelegram(ctx context.Context, payload notification.TelegramPayload) (*notification.ProviderResult, error)
	History(ctx context.Context, limit int) ([]notification.NotificationRecord, error)
}

type NotificationAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewNotificationAPI(n Notifier, logger *slog.Logger) *NotificationAPI {
	return &NotificationAPI{
		Notifier: n,
		Logger:   logger.With("component", "NotificationAPI"),
	}
}

// WhatsAppResponse is returned by a successful direct WhatsApp send.
type WhatsAppResponse struct {
	MessageID string `json:"messageId"`
}

// --- Fan-out ---

// SendNotification answers 200 with one envelope per attempted channel for
// any decodable body; channel failures live inside the envelopes.
func (api *NotificationAPI) SendNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req notification.NotificationRequest
	if err := decodeBody(w, r, &req); err != nil {
		api.Logger.Warn("SendNotification: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid notification json")
		return
	}

	envelopes := api.Notifier.SendNotification(ctx, &req, notifier.Origin{
		RequestedBy: requester(ctx),
		Source:      notification.SourceAPI,
	})
	writeJSON(w, http.StatusOK, envelopes)
}

// --- Direct channels ---

func (api *NotificationAPI) SendWhatsApp(w http.ResponseWriter, r *http.Request) {
	var payload notification.WhatsAppPayload
	if err := decodeBody(w, r, &payload); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid whatsapp json")
		return
	}

	id, err := api.Notifier.SendWhatsApp(r.Context(), payload)
	if err != nil {
		api.writeSendError(w, "whatsapp", err)
		return
	}
	writeJSON(w, http.StatusOK, WhatsAppResponse{MessageID: id})
}

func (api *NotificationAPI) SendTelegram(w http.ResponseWriter, r *http.Request) {
	var payload notification.TelegramPayload
	if err := decodeBody(w, r, &payload); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid telegram json")
		return
	}

	result, err := api.Notifier.SendTelegram(r.Context(), payload)
	if err != nil {
		api.writeSendError(w, "telegram", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- History ---

func (api *NotificationAPI) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.WriteJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := api.Notifier.History(r.Context(), limit)
	if errors.Is(err, notifier.ErrHistoryDisabled) {
		response.WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		api.Logger.Error("failed to list notification history", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// --- Helpers ---

func (api *NotificationAPI) writeSendError(w http.ResponseWriter, channel string, err error) {
	if errors.Is(err, dispatch.ErrValidation) {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.Logger.Error("Direct send failed", "channel", channel, "code", dispatch.ErrorCode(err), "err", err)
	response.WriteJSONError(w, http.StatusBadGateway, err.Error())
}

// requester returns the authenticated caller, normalised to URN form when it
// parses as one. Unauthenticated deployments record no requester.
func requester(ctx context.Context) string {
	handle, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok || handle == "" {
		return ""
	}
	if userURN, err := urn.Parse(handle); err == nil {
		return userURN.String()
	}
	return handle
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
