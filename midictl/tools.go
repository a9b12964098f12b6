package midictl

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

var ccToParam interp.PiecewiseLinear
var paramToCc interp.PiecewiseLinear

// prepares the interpolation between controller values and amp parameters,
// the lower half of the knob travel covers the first third of the range
func InitInterp() {
	ccVals := []float64{0, 32, 64, 96, 127}
	paramVals := []float64{0, 15, 35, 65, 100}
	ccToParam.Fit(ccVals, paramVals)
	paramToCc.Fit(paramVals, ccVals)
}

func CcToParam(v uint8) uint16 {
	x := math.Min(float64(v), 127)
	return uint16(math.Round(ccToParam.Predict(x)))
}

func ParamToCc(v uint16) uint8 {
	x := math.Min(float64(v), 100)
	return uint8(math.Round(paramToCc.Predict(x)))
}
