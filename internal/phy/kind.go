package phy

import "fmt"

// LineCodingKind selects a LineCode implementation.
type LineCodingKind int

const (
	// FourBFiveBCoding is the 4B5B + NRZ-style line code used on the
	// production acoustic link.
	FourBFiveBCoding LineCodingKind = iota
	// ManchesterCoding is the Manchester line code.
	ManchesterCoding
)

// String names the line coding kind.
func (k LineCodingKind) String() string {
	switch k {
	case FourBFiveBCoding:
		return "4B5B"
	case ManchesterCoding:
		return "Manchester"
	default:
		return fmt.Sprintf("LineCodingKind(%d)", int(k))
	}
}

// New constructs a LineCode of this kind with the given samples-per-level.
func (k LineCodingKind) New(samplesPerLevel int) (LineCode, error) {
	switch k {
	case FourBFiveBCoding:
		return NewFourBFiveB(samplesPerLevel), nil
	case ManchesterCoding:
		return NewManchester(samplesPerLevel), nil
	default:
		return nil, fmt.Errorf("phy: unknown line coding kind %d", int(k))
	}
}
