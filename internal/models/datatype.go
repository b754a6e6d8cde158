package models

import (
	"fmt"
	"math"
	"strings"
)

// DataType is the element class of source data, used to cast results back
// after computing in float64.
type DataType int

const (
	Float64 DataType = iota
	Float32
	Int32
	Int16
	Uint8
	Complex128
)

var dataTypeNames = map[DataType]string{
	Float64:    "float64",
	Float32:    "float32",
	Int32:      "int32",
	Int16:      "int16",
	Uint8:      "uint8",
	Complex128: "complex128",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType accepts Go names as well as the MATLAB-style aliases
// "single" and "double".
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "double":
		return Float64, nil
	case "float32", "single":
		return Float32, nil
	case "int32":
		return Int32, nil
	case "int16":
		return Int16, nil
	case "uint8":
		return Uint8, nil
	case "complex128", "complex":
		return Complex128, nil
	}
	return 0, fmt.Errorf("%w: unknown output class %q", ErrConfiguration, s)
}

// Cast converts a computed value to the precision of t. Integer types
// truncate toward zero and saturate at their range; NaN casts to 0.
func (t DataType) Cast(v float64) float64 {
	switch t {
	case Float32:
		return float64(float32(v))
	case Int32:
		return saturate(v, math.MinInt32, math.MaxInt32)
	case Int16:
		return saturate(v, math.MinInt16, math.MaxInt16)
	case Uint8:
		return saturate(v, 0, math.MaxUint8)
	}
	return v
}

// CastAll applies Cast in place.
func (t DataType) CastAll(data []float64) {
	if t == Float64 || t == Complex128 {
		return
	}
	for i, v := range data {
		data[i] = t.Cast(v)
	}
}

func saturate(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
