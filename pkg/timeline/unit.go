package timeline

import (
	"fmt"
	"math"
)

// TimeUnit selects the time axis a timeline or event is expressed in
type TimeUnit string

const (
	Sample TimeUnit = "Sample"
	Second TimeUnit = "Second"
)

func (u TimeUnit) valid() bool {
	return u == Sample || u == Second
}

// ParseTimeUnit converts a unit name into a TimeUnit
func ParseTimeUnit(name string) (TimeUnit, error) {
	u := TimeUnit(name)
	if name == "" {
		return Sample, nil
	}
	if !u.valid() {
		return "", newError(KindInvalidValue, "ParseTimeUnit", "unit must be %q or %q, got %q", Sample, Second, name)
	}
	return u, nil
}

// MeasurementUnit describes the scale in which values are expressed,
// e.g. seconds with a base-10 multiplier of -3 for milliseconds.
// Units are values; owners replace them wholesale.
type MeasurementUnit struct {
	name       string
	acronym    string
	multiplier float64
	isStandard bool
}

// NewMeasurementUnit creates a unit. The multiplier is a base-10 exponent.
func NewMeasurementUnit(name, acronym string, multiplier float64, isStandard bool) (MeasurementUnit, error) {
	if name == "" {
		return MeasurementUnit{}, newError(KindInvalidValue, "NewMeasurementUnit", "name must not be empty")
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return MeasurementUnit{}, newError(KindInvalidValue, "NewMeasurementUnit", "multiplier must be finite, got %v", multiplier)
	}
	return MeasurementUnit{name: name, acronym: acronym, multiplier: multiplier, isStandard: isStandard}, nil
}

// SampleUnit is the unit of sample indices
func SampleUnit() MeasurementUnit {
	return MeasurementUnit{name: string(Sample), acronym: "samples", multiplier: 0, isStandard: false}
}

// SecondUnit is seconds scaled by 10^multiplier
func SecondUnit(multiplier float64) MeasurementUnit {
	return MeasurementUnit{name: string(Second), acronym: "s", multiplier: multiplier, isStandard: true}
}

func (u MeasurementUnit) Name() string        { return u.name }
func (u MeasurementUnit) Acronym() string     { return u.acronym }
func (u MeasurementUnit) Multiplier() float64 { return u.multiplier }

// IsStandard reports whether the unit was declared part of the International System.
// It is a declaration, not checked against any list.
func (u MeasurementUnit) IsStandard() bool { return u.isStandard }

// Scale returns 10^multiplier
func (u MeasurementUnit) Scale() float64 {
	return math.Pow(10, u.multiplier)
}

// Kind returns the TimeUnit matching the unit name, or "" for other units
func (u MeasurementUnit) Kind() TimeUnit {
	k := TimeUnit(u.name)
	if k.valid() {
		return k
	}
	return ""
}

// Equal compares all four fields
func (u MeasurementUnit) Equal(other MeasurementUnit) bool {
	return u.name == other.name &&
		u.acronym == other.acronym &&
		u.multiplier == other.multiplier &&
		u.isStandard == other.isStandard
}

func (u MeasurementUnit) String() string {
	if u.multiplier == 0 {
		return fmt.Sprintf("%s [%s]", u.name, u.acronym)
	}
	return fmt.Sprintf("%s [%s x 10^%g]", u.name, u.acronym, u.multiplier)
}
