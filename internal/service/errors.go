package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProfileRequired    = errors.New("profile required")
	ErrProfileExists      = errors.New("profile already exists")
	ErrNotCollegeEmail    = errors.New("not a college email")
	ErrAlreadyInterested  = errors.New("already interested")
	ErrAlreadyOffered     = errors.New("already offered")
	ErrAlreadyRated       = errors.New("already rated")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrMatchClosed        = errors.New("match is closed")
	ErrListingUnavailable = errors.New("listing unavailable")
	ErrRequestUnavailable = errors.New("request unavailable")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// lookupErr maps a missing row to ErrNotFound and passes everything else through.
func lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
