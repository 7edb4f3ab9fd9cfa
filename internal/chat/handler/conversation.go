package handler

import (
	"net/http"

	"wayfare/internal/chat/service"
	httputil "wayfare/pkg/http"
	"wayfare/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type ConversationHandler struct {
	service *service.ChatService
	log     *logger.Logger
}

func NewConversationHandler(service *service.ChatService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		log:     log,
	}
}

func (h *ConversationHandler) GetByTripID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tripID := ps.ByName("trip_id")

	conversation, err := h.service.GetByTripID(r.Context(), tripID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByTripID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, conversation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByTripID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tripID := ps.ByName("trip_id")

	userID, err := httputil.ExtractUserID(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Leave", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Leave(r.Context(), tripID, userID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Leave", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ConversationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/conversations/trip/:trip_id", h.GetByTripID)
	router.POST("/api/v1/conversations/trip/:trip_id/leave", h.Leave)
}
