package model

import (
	"strconv"
	"strings"
)

type Category string

const (
	CategoryBooks       Category = "books"
	CategoryCycles      Category = "cycles"
	CategoryElectronics Category = "electronics"
	CategoryHostelItems Category = "hostel-items"
)

var Categories = []Category{CategoryBooks, CategoryCycles, CategoryElectronics, CategoryHostelItems}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// CampusLocation is one of the fixed meetup points on campus.
type CampusLocation string

const (
	LocationLibrary    CampusLocation = "library"
	LocationCanteen    CampusLocation = "canteen"
	LocationDepartment CampusLocation = "department"
	LocationHostel     CampusLocation = "hostel"
	LocationMainGate   CampusLocation = "main-gate"
)

var CampusLocations = []CampusLocation{LocationLibrary, LocationCanteen, LocationDepartment, LocationHostel, LocationMainGate}

func (l CampusLocation) Valid() bool {
	for _, v := range CampusLocations {
		if v == l {
			return true
		}
	}
	return false
}

// Label is the human readable name used in system messages.
func (l CampusLocation) Label() string {
	switch l {
	case LocationMainGate:
		return "Main Gate"
	case "":
		return "a campus spot"
	}
	s := string(l)
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

func ParseCampusLocation(s string) (CampusLocation, bool) {
	l := CampusLocation(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
