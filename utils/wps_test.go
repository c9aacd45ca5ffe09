package utils

import (
	"io/ioutil"
	"strings"
	"testing"
)

func TestWPSParamsChecker(t *testing.T) {
	reWPSMap := CompileWPSRegexMap()

	fc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[10,10],[18,10],[18,18],[10,18],[10,10]]]}}]}`
	params := map[string][]string{
		"service":         {"WPS"},
		"request":         {"Execute"},
		"identifier":      {"TVDI"},
		"start_datetime":  {`{"properties":{"timestamp":{"date-time":"2020-01-01T00:00"}}}`},
		"end_datetime":    {`{"properties":{"timestamp":{"date-time":"2020-02-01T00:00"}}}`},
		"geometry":        {"geometry=" + fc},
		"ndvi_clip_lower": {"0.05"},
	}

	wpsParams, err := WPSParamsChecker(params, reWPSMap)
	if err != nil {
		t.Errorf("WPS params check failed, %v", err)
		return
	}
	if *wpsParams.Request != "Execute" || *wpsParams.Identifier != "TVDI" {
		t.Errorf("request parsing failed, expecting Execute/TVDI, actual %v/%v",
			*wpsParams.Request, *wpsParams.Identifier)
	}
	if *wpsParams.StartDateTime != "2020-01-01T00:00:00.000Z" {
		t.Errorf("start datetime parsing failed, actual %v", *wpsParams.StartDateTime)
	}
	if len(wpsParams.FeatCol.Features) != 1 {
		t.Errorf("expecting 1 feature, actual %d", len(wpsParams.FeatCol.Features))
		return
	}
	if cl, ok := wpsParams.ClipLowers["ndvi_clip_lower"]; !ok || cl != 0.05 {
		t.Errorf("clip lower parsing failed, actual %v", wpsParams.ClipLowers)
	}

	area := GetArea(wpsParams.FeatCol.Features[0].Geometry)
	if area < 63.999 || area > 64.001 {
		t.Errorf("polygon area failed, expecting 64, actual %v", area)
	}

	params["request"] = []string{"GetMap"}
	_, err = WPSParamsChecker(params, reWPSMap)
	if err == nil {
		t.Errorf("expecting error for non WPS request")
	}
}

func TestPolygonArea(t *testing.T) {
	square := [][][]float64{
		{{10, 10}, {18, 10}, {18, 18}, {10, 18}, {10, 10}},
	}
	if area := polygonArea(square); area != 64 {
		t.Errorf("square area failed, expecting 64, actual %v", area)
	}

	withHole := [][][]float64{
		{{10, 10}, {18, 10}, {18, 18}, {10, 18}, {10, 10}},
		{{12, 12}, {14, 12}, {14, 14}, {12, 14}, {12, 12}},
	}
	if area := polygonArea(withHole); area != 60 {
		t.Errorf("holed area failed, expecting 60, actual %v", area)
	}

	// winding direction must not matter
	clockwise := [][][]float64{
		{{10, 10}, {10, 18}, {18, 18}, {18, 10}, {10, 10}},
	}
	if area := polygonArea(clockwise); area != 64 {
		t.Errorf("clockwise area failed, expecting 64, actual %v", area)
	}

	if area := ringArea([][]float64{{0, 0}, {1, 1}}); area != 0 {
		t.Errorf("degenerate ring area failed, expecting 0, actual %v", area)
	}
}

func TestParsePost(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<wps:Execute version="1.0.0" service="WPS">
  <ows:Identifier>TVDI</ows:Identifier>
  <wps:DataInputs>
    <wps:Input>
      <ows:Identifier>geometry</ows:Identifier>
      <wps:Data>
        <wps:ComplexData>{"type":"FeatureCollection","features":[]}</wps:ComplexData>
      </wps:Data>
    </wps:Input>
    <wps:Input>
      <ows:Identifier>geometry_id</ows:Identifier>
      <wps:Data>
        <wps:LiteralData>site42</wps:LiteralData>
      </wps:Data>
    </wps:Input>
    <wps:Input>
      <ows:Identifier>ndvi_clip_upper</ows:Identifier>
      <wps:Data>
        <wps:LiteralData>0.95</wps:LiteralData>
      </wps:Data>
    </wps:Input>
  </wps:DataInputs>
</wps:Execute>`

	query, err := ParsePost(ioutil.NopCloser(strings.NewReader(body)))
	if err != nil {
		t.Errorf("POST parsing failed, %v", err)
		return
	}
	if query["request"][0] != "Execute" || query["identifier"][0] != "TVDI" {
		t.Errorf("POST body parsing failed, actual %v", query)
	}
	if !strings.HasPrefix(query["geometry"][0], "geometry=") {
		t.Errorf("geometry input parsing failed, actual %v", query["geometry"])
	}
	if query["geometry_id"][0] != "site42" {
		t.Errorf("geometry_id parsing failed, actual %v", query["geometry_id"])
	}
	if query["ndvi_clip_upper"][0] != "0.95" {
		t.Errorf("clip upper parsing failed, actual %v", query["ndvi_clip_upper"])
	}
}
