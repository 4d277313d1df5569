package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/storage"
)

// ImageStore is implemented by *storage.Uploader.
type ImageStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

type UploadHandler struct {
	store    ImageStore
	maxBytes int64
}

// NewUploadHandler accepts a nil store; uploads then answer 503.
func NewUploadHandler(store ImageStore, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &UploadHandler{store: store, maxBytes: maxBytes}
}

func (h *UploadHandler) ListingImage(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	if h.store == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "image upload is not configured"))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "file is required"))
	}
	if fh.Size > h.maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", "image is too large"))
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read file"))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read file"))
	}
	if int64(len(data)) > h.maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", "image is too large"))
	}

	// Sniff the bytes; the client supplied Content-Type is not trusted.
	contentType := http.DetectContentType(data)
	objectPath, err := storage.ListingImagePath(uid, contentType)
	if errors.Is(err, storage.ErrUnsupportedType) {
		return c.JSON(http.StatusUnsupportedMediaType, NewErrorResponse("unsupported_type", "only jpeg, png, webp or gif images are allowed"))
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	url, err := h.store.Put(c.Request().Context(), objectPath, contentType, data)
	if err != nil {
		logging.FromContext(c.Request().Context()).WithError(err).WithField("object", objectPath).Error("image upload failed")
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upload_failed", "failed to upload image"))
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}
