package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type MessageHandler struct {
	svc service.ChatService
}

func NewMessageHandler(svc service.ChatService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type MessageResponse struct {
	ID        uint64 `json:"id"`
	MatchID   uint64 `json:"matchId"`
	SenderUID string `json:"senderId"`
	Body      string `json:"body"`
	IsSystem  bool   `json:"isSystem"`
	CreatedAt string `json:"createdAt"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}

func toMessageResponse(m *model.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		MatchID:   m.MatchID,
		SenderUID: m.SenderUID,
		Body:      m.Body,
		IsSystem:  m.IsSystem,
		CreatedAt: formatTime(m.CreatedAt),
	}
}

func (h *MessageHandler) List(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	list, err := h.svc.List(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch messages")
	}
	resp := make([]MessageResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toMessageResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": resp})
}

func (h *MessageHandler) Send(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.Send(c.Request().Context(), id, uid, req.Body)
	if err != nil {
		return writeServiceError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, toMessageResponse(msg))
}
