package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type RequestHandler struct {
	svc     service.NeedRequestService
	matches service.MatchService
}

func NewRequestHandler(svc service.NeedRequestService, matches service.MatchService) *RequestHandler {
	return &RequestHandler{svc: svc, matches: matches}
}

type NeedRequestResponse struct {
	ID                uint64 `json:"id"`
	RequesterUID      string `json:"requesterId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	MaxBudget         uint   `json:"maxBudget"`
	Category          string `json:"category"`
	PreferredLocation string `json:"preferredLocation"`
	Status            string `json:"status"`
	ExpiresAt         string `json:"expiresAt"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

type NeedRequestListResponse struct {
	Requests []NeedRequestResponse `json:"requests"`
	Total    int64                 `json:"total"`
}

type CreateNeedRequestRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	MaxBudget         int64  `json:"maxBudget"`
	Category          string `json:"category"`
	PreferredLocation string `json:"preferredLocation"`
}

func toNeedRequestResponse(r *model.NeedRequest) NeedRequestResponse {
	return NeedRequestResponse{
		ID:                r.ID,
		RequesterUID:      r.RequesterUID,
		Title:             r.Title,
		Description:       r.Description,
		MaxBudget:         r.MaxBudget,
		Category:          string(r.Category),
		PreferredLocation: string(r.PreferredLocation),
		Status:            string(r.Status),
		ExpiresAt:         formatTime(r.ExpiresAt),
		CreatedAt:         formatTime(r.CreatedAt),
		UpdatedAt:         formatTime(r.UpdatedAt),
	}
}

func toNeedRequestResponses(list []model.NeedRequest) []NeedRequestResponse {
	resp := make([]NeedRequestResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toNeedRequestResponse(&list[i]))
	}
	return resp
}

func (h *RequestHandler) Create(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreateNeedRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	r, err := h.svc.Create(c.Request().Context(), uid, service.NeedRequestInput{
		Title:             req.Title,
		Description:       req.Description,
		MaxBudget:         req.MaxBudget,
		Category:          model.Category(strings.TrimSpace(req.Category)),
		PreferredLocation: model.CampusLocation(strings.TrimSpace(req.PreferredLocation)),
	})
	if err != nil {
		return writeServiceError(c, err, "failed to create request")
	}
	return c.JSON(http.StatusCreated, toNeedRequestResponse(r))
}

func (h *RequestHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch request")
	}
	return c.JSON(http.StatusOK, toNeedRequestResponse(r))
}

func (h *RequestHandler) List(c echo.Context) error {
	list, total, err := h.svc.List(c.Request().Context(), repository.NeedRequestFilter{
		Status:   model.NeedStatus(strings.TrimSpace(c.QueryParam("status"))),
		Category: model.Category(strings.TrimSpace(c.QueryParam("category"))),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	})
	if err != nil {
		return writeServiceError(c, err, "failed to fetch requests")
	}
	return c.JSON(http.StatusOK, NeedRequestListResponse{Requests: toNeedRequestResponses(list), Total: total})
}

func (h *RequestHandler) ListMine(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch requests")
	}
	return c.JSON(http.StatusOK, NeedRequestListResponse{Requests: toNeedRequestResponses(list), Total: int64(len(list))})
}

func (h *RequestHandler) Delete(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.svc.Delete(c.Request().Context(), id, uid); err != nil {
		return writeServiceError(c, err, "failed to delete request")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RequestHandler) Close(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	r, err := h.svc.Close(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to close request")
	}
	return c.JSON(http.StatusOK, toNeedRequestResponse(r))
}

// Offer answers a request as a seller.
func (h *RequestHandler) Offer(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	m, err := h.matches.OfferForRequest(c.Request().Context(), id, uid)
	if errors.Is(err, service.ErrAlreadyOffered) && m != nil {
		return c.JSON(http.StatusOK, MatchCreatedResponse{Match: toMatchResponse(m), Existing: true})
	}
	if err != nil {
		return writeServiceError(c, err, "failed to offer")
	}
	return c.JSON(http.StatusCreated, MatchCreatedResponse{Match: toMatchResponse(m)})
}
