package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type RatingHandler struct {
	svc service.RatingService
}

func NewRatingHandler(svc service.RatingService) *RatingHandler {
	return &RatingHandler{svc: svc}
}

// Flag details stay server side; clients only learn a review was hidden.
type RatingResponse struct {
	ID            uint64  `json:"id"`
	MatchID       uint64  `json:"matchId"`
	RaterUID      string  `json:"raterId"`
	RatedUID      string  `json:"ratedId"`
	Overall       int     `json:"overallRating"`
	Communication int     `json:"communicationRating"`
	Accuracy      int     `json:"accuracyRating"`
	Punctuality   int     `json:"punctualityRating"`
	Review        *string `json:"review,omitempty"`
	Hidden        bool    `json:"hidden"`
	CreatedAt     string  `json:"createdAt"`
}

type CreateRatingRequest struct {
	Overall       int     `json:"overallRating"`
	Communication *int    `json:"communicationRating"`
	Accuracy      *int    `json:"accuracyRating"`
	Punctuality   *int    `json:"punctualityRating"`
	Review        *string `json:"review"`
}

func toRatingResponse(r *model.Rating) RatingResponse {
	resp := RatingResponse{
		ID:            r.ID,
		MatchID:       r.MatchID,
		RaterUID:      r.RaterUID,
		RatedUID:      r.RatedUID,
		Overall:       r.Overall,
		Communication: r.Communication,
		Accuracy:      r.Accuracy,
		Punctuality:   r.Punctuality,
		Hidden:        r.IsFlagged,
		CreatedAt:     formatTime(r.CreatedAt),
	}
	if !r.IsFlagged {
		resp.Review = r.Review
	}
	return resp
}

func toRatingResponses(list []model.Rating) []RatingResponse {
	resp := make([]RatingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toRatingResponse(&list[i]))
	}
	return resp
}

func (h *RatingHandler) Create(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var req CreateRatingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	r, err := h.svc.Create(c.Request().Context(), id, uid, service.RatingInput{
		Overall:       req.Overall,
		Communication: req.Communication,
		Accuracy:      req.Accuracy,
		Punctuality:   req.Punctuality,
		Review:        req.Review,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to save rating")
	}
	return c.JSON(http.StatusCreated, toRatingResponse(r))
}

func (h *RatingHandler) ListForMatch(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	list, err := h.svc.ListForMatch(c.Request().Context(), id, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch ratings")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ratings": toRatingResponses(list)})
}
