package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type MatchHandler struct {
	svc service.MatchService
}

func NewMatchHandler(svc service.MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

type MatchResponse struct {
	ID              uint64               `json:"id"`
	ListingID       *uint64              `json:"listingId,omitempty"`
	RequestID       *uint64              `json:"requestId,omitempty"`
	SellerUID       string               `json:"sellerId"`
	BuyerUID        string               `json:"buyerId"`
	Status          string               `json:"status"`
	MatchScore      int                  `json:"matchScore"`
	MeetingLocation string               `json:"meetingLocation,omitempty"`
	MeetingTime     *string              `json:"meetingTime,omitempty"`
	CompletedAt     *string              `json:"completedAt,omitempty"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
	Listing         *ListingResponse     `json:"listing,omitempty"`
	Request         *NeedRequestResponse `json:"request,omitempty"`
}

type MatchCreatedResponse struct {
	Match    MatchResponse `json:"match"`
	Existing bool          `json:"existing"`
}

type ScheduleMeetingRequest struct {
	Location *string `json:"location"`
	Time     *string `json:"time"`
}

func toMatchResponse(m *model.Match) MatchResponse {
	return MatchResponse{
		ID:              m.ID,
		ListingID:       m.ListingID,
		RequestID:       m.RequestID,
		SellerUID:       m.SellerUID,
		BuyerUID:        m.BuyerUID,
		Status:          string(m.Status),
		MatchScore:      m.MatchScore,
		MeetingLocation: string(m.MeetingLocation),
		MeetingTime:     formatTimePtr(m.MeetingTime),
		CompletedAt:     formatTimePtr(m.CompletedAt),
		CreatedAt:       formatTime(m.CreatedAt),
		UpdatedAt:       formatTime(m.UpdatedAt),
	}
}

func toMatchViewResponse(v *service.MatchView) MatchResponse {
	resp := toMatchResponse(&v.Match)
	if v.Listing != nil {
		l := toListingResponse(v.Listing)
		resp.Listing = &l
	}
	if v.Request != nil {
		r := toNeedRequestResponse(v.Request)
		resp.Request = &r
	}
	return resp
}

func (h *MatchHandler) ListMine(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	views, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch matches")
	}
	resp := make([]MatchResponse, 0, len(views))
	for i := range views {
		resp = append(resp, toMatchViewResponse(&views[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matches": resp})
}

func (h *MatchHandler) Get(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	v, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch match")
	}
	return c.JSON(http.StatusOK, toMatchViewResponse(v))
}

func (h *MatchHandler) Schedule(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var req ScheduleMeetingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	var in service.ScheduleInput
	if req.Location != nil && strings.TrimSpace(*req.Location) != "" {
		loc := model.CampusLocation(strings.TrimSpace(*req.Location))
		in.Location = &loc
	}
	if req.Time != nil && strings.TrimSpace(*req.Time) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.Time))
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "time must be RFC3339"))
		}
		in.Time = &t
	}
	m, err := h.svc.ScheduleMeeting(c.Request().Context(), id, uid, in)
	if err != nil {
		return writeServiceError(c, err, "failed to schedule meeting")
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}

func (h *MatchHandler) Complete(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	m, err := h.svc.Complete(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to complete exchange")
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}

func (h *MatchHandler) Cancel(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	m, err := h.svc.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to cancel exchange")
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}
