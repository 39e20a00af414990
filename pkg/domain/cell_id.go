package domain

import (
	"fmt"
	"strings"
)

// CellSeparator joins a zone id and a date inside a cell id.
const CellSeparator = "|"

// InboundZone is the synthetic zone that holds purchase orders.
const InboundZone = "inbound"

// CellID identifies a board cell as "<zoneId>|<date>". Zone ids may contain the
// separator themselves; dates never do, so parsing always splits on the last one.
type CellID string

// NewCellID joins zone and date into a cell id.
func NewCellID(zone, date string) CellID {
	return CellID(zone + CellSeparator + date)
}

// ParseCellID validates raw and returns it as a CellID. A string without any
// separator is structurally invalid.
func ParseCellID(raw string) (CellID, error) {
	if !CellID(raw).Valid() {
		return "", fmt.Errorf("cell id %q: missing %q separator", raw, CellSeparator)
	}
	return CellID(raw), nil
}

func (c CellID) split() (zone, date string) {
	i := strings.LastIndex(string(c), CellSeparator)
	if i < 0 {
		return string(c), ""
	}
	return string(c[:i]), string(c[i+len(CellSeparator):])
}

// Zone returns the truck identifier (or InboundZone) part of the id.
func (c CellID) Zone() string {
	zone, _ := c.split()
	return zone
}

// Date returns the YYYY-MM-DD part of the id.
func (c CellID) Date() string {
	_, date := c.split()
	return date
}

// Valid reports whether the id contains the zone/date separator.
func (c CellID) Valid() bool { return strings.Contains(string(c), CellSeparator) }

func (c CellID) String() string { return string(c) }
