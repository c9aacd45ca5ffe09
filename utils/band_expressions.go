package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/edisonguo/govaluate"
)

// BandExpressions holds the compiled form of a list of band math
// expressions. An expression is either a bare variable name such as
// "ndvi" or an assignment such as "NDVI=(nir-red)/(nir+red)". The
// VarList field accumulates the distinct variables referenced across
// all expressions and ExprVarRef keeps the per expression variables
// in the order the expressions were supplied.
type BandExpressions struct {
	ExprText    []string
	Expressions []*govaluate.EvaluableExpression
	VarList     []string
	ExprNames   []string
	ExprVarRef  [][]string
}

var bandNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func ParseBandExpressions(bands []string) (*BandExpressions, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no band expressions supplied")
	}

	bandExpr := &BandExpressions{ExprText: bands}
	varFound := make(map[string]bool)
	for _, bandRaw := range bands {
		band := strings.TrimSpace(bandRaw)
		if len(band) == 0 {
			return nil, fmt.Errorf("empty band expression")
		}

		exprName := band
		exprBody := band
		if iEq := strings.Index(band, "="); iEq >= 0 {
			exprName = strings.TrimSpace(band[:iEq])
			exprBody = strings.TrimSpace(band[iEq+1:])
			if !bandNameRegex.MatchString(exprName) {
				return nil, fmt.Errorf("invalid band name '%s' in expression '%s'", exprName, bandRaw)
			}
			if len(exprBody) == 0 {
				return nil, fmt.Errorf("empty expression body in '%s'", bandRaw)
			}
		}

		expr, err := govaluate.NewEvaluableExpression(exprBody)
		if err != nil {
			return nil, fmt.Errorf("parsing error in band expression '%s': %v", bandRaw, err)
		}

		bandExpr.Expressions = append(bandExpr.Expressions, expr)
		bandExpr.ExprNames = append(bandExpr.ExprNames, exprName)

		exprVars := expr.Vars()
		for _, variable := range exprVars {
			if !varFound[variable] {
				varFound[variable] = true
				bandExpr.VarList = append(bandExpr.VarList, variable)
			}
		}
		bandExpr.ExprVarRef = append(bandExpr.ExprVarRef, exprVars)
	}

	return bandExpr, nil
}
