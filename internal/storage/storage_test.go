package storage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingImagePath(t *testing.T) {
	p, err := ListingImagePath("u1", "image/PNG")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^listings/u1/[0-9a-f-]{36}\.png$`), p)

	_, err = ListingImagePath("u1", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ListingImagePath("../etc", "image/jpeg")
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("campus.appspot.com", "listings/u1/a b.jpg", "tok-1")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/campus.appspot.com/o/listings%2Fu1%2Fa%20b.jpg?alt=media&token=tok-1",
		got)
}
