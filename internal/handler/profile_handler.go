package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type ProfileHandler struct {
	svc     service.ProfileService
	ratings service.RatingService
}

func NewProfileHandler(svc service.ProfileService, ratings service.RatingService) *ProfileHandler {
	return &ProfileHandler{svc: svc, ratings: ratings}
}

type ProfileResponse struct {
	UID            string  `json:"uid"`
	Email          string  `json:"email,omitempty"`
	Name           string  `json:"name"`
	AvatarURL      *string `json:"avatarUrl,omitempty"`
	College        string  `json:"college"`
	TrustScore     float64 `json:"trustScore"`
	TotalRatings   int     `json:"totalRatings"`
	TotalExchanges *int64  `json:"totalExchanges,omitempty"`
	Badge          string  `json:"badge"`
	CreatedAt      string  `json:"createdAt"`
}

type RegisterProfileRequest struct {
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func toProfileResponse(p *model.Profile, withEmail bool) ProfileResponse {
	resp := ProfileResponse{
		UID:          p.UID,
		Name:         p.Name,
		AvatarURL:    p.AvatarURL,
		College:      p.College(),
		TrustScore:   p.TrustScore,
		TotalRatings: p.TotalRatings,
		Badge:        string(p.Badge()),
		CreatedAt:    formatTime(p.CreatedAt),
	}
	if withEmail {
		resp.Email = p.Email
	}
	return resp
}

func toProfileViewResponse(v *service.ProfileView, withEmail bool) ProfileResponse {
	resp := toProfileResponse(&v.Profile, withEmail)
	total := v.TotalExchanges
	resp.TotalExchanges = &total
	return resp
}

// Register creates the caller's profile. The verified token email wins over
// the body so users cannot claim another college.
func (h *ProfileHandler) Register(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req RegisterProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	email := req.Email
	if tokenEmail, _ := c.Get("email").(string); tokenEmail != "" {
		email = tokenEmail
	}
	p, err := h.svc.Register(c.Request().Context(), service.RegisterInput{
		UID:       uid,
		Email:     email,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to create profile")
	}
	return c.JSON(http.StatusCreated, toProfileResponse(p, true))
}

func (h *ProfileHandler) Me(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	v, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, toProfileViewResponse(v, true))
}

func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	p, err := h.svc.UpdateMe(c.Request().Context(), uid, req.Name, req.AvatarURL)
	if err != nil {
		return writeServiceError(c, err, "failed to update profile")
	}
	return c.JSON(http.StatusOK, toProfileResponse(p, true))
}

func (h *ProfileHandler) Get(c echo.Context) error {
	uid := strings.TrimSpace(c.Param("uid"))
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	v, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, toProfileViewResponse(v, false))
}

// GetMany resolves ?ids=a,b,c in one call for list screens.
func (h *ProfileHandler) GetMany(c echo.Context) error {
	var uids []string
	for _, id := range strings.Split(c.QueryParam("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			uids = append(uids, id)
		}
	}
	if len(uids) == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "ids is required"))
	}
	list, err := h.svc.GetMany(c.Request().Context(), uids)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch profiles")
	}
	resp := make([]ProfileResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toProfileResponse(&list[i], false))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": resp})
}

func (h *ProfileHandler) Ratings(c echo.Context) error {
	uid := strings.TrimSpace(c.Param("uid"))
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	list, err := h.ratings.ListForUser(c.Request().Context(), uid, queryInt(c, "limit"))
	if err != nil {
		return writeServiceError(c, err, "failed to fetch ratings")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ratings": toRatingResponses(list)})
}
