package utils

import (
	"testing"
)

func TestParseBandExpressions(t *testing.T) {
	bandExpr, err := ParseBandExpressions([]string{"NDVI=(nir-red)/(nir+red)"})
	if err != nil {
		t.Errorf("band expression parsing failed, %v", err)
		return
	}
	if bandExpr.ExprNames[0] != "NDVI" {
		t.Errorf("expression name failed, expecting NDVI, actual %v", bandExpr.ExprNames[0])
	}
	if len(bandExpr.VarList) != 2 || bandExpr.VarList[0] != "nir" || bandExpr.VarList[1] != "red" {
		t.Errorf("variable list failed, expecting [nir red], actual %v", bandExpr.VarList)
	}
	if len(bandExpr.Expressions) != 1 || len(bandExpr.ExprVarRef) != 1 {
		t.Errorf("expression compilation failed, actual %d expressions", len(bandExpr.Expressions))
		return
	}

	result, err := bandExpr.Expressions[0].Evaluate(map[string]interface{}{
		"nir": float32(0.6), "red": float32(0.2),
	})
	if err != nil {
		t.Errorf("expression evaluation failed, %v", err)
		return
	}
	val, ok := result.(float32)
	if !ok {
		t.Errorf("failed to cast eval result to float32, actual %T", result)
		return
	}
	if val < 0.499 || val > 0.501 {
		t.Errorf("expression evaluation failed, expecting 0.5, actual %v", val)
	}

	bandExpr, err = ParseBandExpressions([]string{"lst"})
	if err != nil {
		t.Errorf("bare band parsing failed, %v", err)
		return
	}
	if bandExpr.ExprNames[0] != "lst" || len(bandExpr.VarList) != 1 {
		t.Errorf("bare band failed, actual %v, %v", bandExpr.ExprNames, bandExpr.VarList)
	}

	if _, err = ParseBandExpressions([]string{"2bad=nir+red"}); err == nil {
		t.Errorf("expecting error for invalid band name")
	}
	if _, err = ParseBandExpressions([]string{"LST="}); err == nil {
		t.Errorf("expecting error for empty expression body")
	}
	if _, err = ParseBandExpressions(nil); err == nil {
		t.Errorf("expecting error for empty expression list")
	}
}
