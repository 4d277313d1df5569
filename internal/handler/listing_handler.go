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

type ListingHandler struct {
	svc     service.ListingService
	matches service.MatchService
}

func NewListingHandler(svc service.ListingService, matches service.MatchService) *ListingHandler {
	return &ListingHandler{svc: svc, matches: matches}
}

type ListingResponse struct {
	ID          uint64   `json:"id"`
	SellerUID   string   `json:"sellerId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       uint     `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type ListingListResponse struct {
	Listings []ListingResponse `json:"listings"`
	Total    int64             `json:"total"`
}

type CreateListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
}

type UpdateListingRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price"`
	Category    *string   `json:"category"`
	Location    *string   `json:"location"`
	Images      *[]string `json:"images"`
	Status      *string   `json:"status"`
}

func toListingResponse(l *model.Listing) ListingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return ListingResponse{
		ID:          l.ID,
		SellerUID:   l.SellerUID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Category:    string(l.Category),
		Location:    string(l.Location),
		Images:      images,
		Status:      string(l.Status),
		CreatedAt:   formatTime(l.CreatedAt),
		UpdatedAt:   formatTime(l.UpdatedAt),
	}
}

func toListingResponses(list []model.Listing) []ListingResponse {
	resp := make([]ListingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toListingResponse(&list[i]))
	}
	return resp
}

func (h *ListingHandler) Create(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	l, err := h.svc.Create(c.Request().Context(), uid, service.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    model.Category(strings.TrimSpace(req.Category)),
		Location:    model.CampusLocation(strings.TrimSpace(req.Location)),
		Images:      req.Images,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to create listing")
	}
	return c.JSON(http.StatusCreated, toListingResponse(l))
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch listing")
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

// List defaults to available listings; pass status=all to see everything.
func (h *ListingHandler) List(c echo.Context) error {
	status := model.ListingStatusAvailable
	switch s := strings.TrimSpace(c.QueryParam("status")); s {
	case "":
	case "all":
		status = ""
	default:
		status = model.ListingStatus(s)
	}
	list, total, err := h.svc.List(c.Request().Context(), repository.ListingFilter{
		Status:   status,
		Category: model.Category(strings.TrimSpace(c.QueryParam("category"))),
		Query:    c.QueryParam("q"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	})
	if err != nil {
		return writeServiceError(c, err, "failed to fetch listings")
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: toListingResponses(list), Total: total})
}

func (h *ListingHandler) ListMine(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch listings")
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: toListingResponses(list), Total: int64(len(list))})
}

func (h *ListingHandler) Update(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var req UpdateListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	patch := service.ListingPatch{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Images:      req.Images,
	}
	if req.Category != nil {
		cat := model.Category(strings.TrimSpace(*req.Category))
		patch.Category = &cat
	}
	if req.Location != nil {
		loc := model.CampusLocation(strings.TrimSpace(*req.Location))
		patch.Location = &loc
	}
	if req.Status != nil {
		st := model.ListingStatus(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}
	l, err := h.svc.Update(c.Request().Context(), id, uid, patch)
	if err != nil {
		return writeServiceError(c, err, "failed to update listing")
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func (h *ListingHandler) Delete(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.svc.Delete(c.Request().Context(), id, uid); err != nil {
		return writeServiceError(c, err, "failed to delete listing")
	}
	return c.NoContent(http.StatusNoContent)
}

// Interest registers the caller as a buyer. Repeating it returns the existing
// match with 200 instead of 201.
func (h *ListingHandler) Interest(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	m, err := h.matches.ExpressInterest(c.Request().Context(), id, uid)
	if errors.Is(err, service.ErrAlreadyInterested) && m != nil {
		return c.JSON(http.StatusOK, MatchCreatedResponse{Match: toMatchResponse(m), Existing: true})
	}
	if err != nil {
		return writeServiceError(c, err, "failed to express interest")
	}
	return c.JSON(http.StatusCreated, MatchCreatedResponse{Match: toMatchResponse(m)})
}
