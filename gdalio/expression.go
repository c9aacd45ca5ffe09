package gdalio

import (
	"fmt"
	"math"

	"github.com/nci/tvdi/raster"
	"github.com/nci/tvdi/utils"
)

// EvaluateBandExpression derives a new field by applying the first
// compiled band expression pixel by pixel over its input variables.
// A pixel is nodata in the output whenever any referenced variable is
// nodata there or the expression result is not finite.
func EvaluateBandExpression(bandExpr *utils.BandExpressions, vars map[string]*raster.Field, noData float64) (*raster.Field, error) {
	if bandExpr == nil || len(bandExpr.Expressions) == 0 {
		return nil, fmt.Errorf("no band expression to evaluate")
	}
	expr := bandExpr.Expressions[0]
	exprVars := bandExpr.ExprVarRef[0]

	var ref *raster.Field
	for _, variable := range exprVars {
		field, found := vars[variable]
		if !found {
			return nil, fmt.Errorf("band expression '%s' references unknown variable %s",
				bandExpr.ExprText[0], variable)
		}
		if ref == nil {
			ref = field
		} else if !ref.SameShape(field) {
			return nil, fmt.Errorf("variable %s is %dx%d but %s is %dx%d",
				variable, field.Width, field.Height, ref.NameSpace, ref.Width, ref.Height)
		}
	}
	if ref == nil {
		return nil, fmt.Errorf("band expression '%s' references no variables", bandExpr.ExprText[0])
	}

	out := raster.NewField(bandExpr.ExprNames[0], ref.Width, ref.Height, noData, ref.GeoTransform)

	parameters := make(map[string]interface{}, len(exprVars))
	for i := range out.Data {
		valid := true
		for _, variable := range exprVars {
			field := vars[variable]
			if !field.IsValid(i) {
				valid = false
				break
			}
			parameters[variable] = field.Data[i]
		}
		if !valid {
			continue
		}

		result, err := expr.Evaluate(parameters)
		if err != nil {
			return nil, fmt.Errorf("eval '%v' error: %v", bandExpr.ExprText[0], err)
		}
		val, ok := result.(float32)
		if !ok {
			return nil, fmt.Errorf("failed to cast eval results '%v' to float32, %v", result, bandExpr.ExprText[0])
		}

		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			continue
		}
		out.Data[i] = val
	}

	return out, nil
}
