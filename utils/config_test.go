package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAllConfigFiles(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "tvdi_config")
	if err != nil {
		t.Errorf("failed to create temp dir: %v", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	configJSON := `{
  "service_config": {
    "tvdi_hostname": "tvdi.example.local"
  },
  "processes": [
    {
      "identifier": "TVDI",
      "title": "Temperature Vegetation Dryness Index",
      "max_area": 25.0,
      "data_source": "/data/scenes",
      "ndvi_expression": "NDVI=(nir-red)/(nir+red)",
      "lst_expression": "LST=lst_raw*0.02"
    }
  ]
}`
	err = ioutil.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(configJSON), 0644)
	if err != nil {
		t.Errorf("failed to write config file: %v", err)
		return
	}

	configMap, err := LoadAllConfigFiles(tmpDir, false)
	if err != nil {
		t.Errorf("config loading failed, %v", err)
		return
	}

	config, ok := configMap["."]
	if !ok {
		t.Errorf("root namespace missing, actual %v", configMap)
		return
	}
	if len(config.Processes) != 1 {
		t.Errorf("expecting 1 process, actual %d", len(config.Processes))
		return
	}

	process := config.Processes[0]
	if process.Identifier != "TVDI" || process.MaxArea != 25.0 {
		t.Errorf("process parsing failed, actual %v", process)
	}
	if process.Concurrency != DefaultConcurrency {
		t.Errorf("concurrency default failed, expecting %d, actual %d",
			DefaultConcurrency, process.Concurrency)
	}
	if process.Resolution != DefaultResolution {
		t.Errorf("resolution default failed, expecting %v, actual %v",
			DefaultResolution, process.Resolution)
	}
	if process.NDVIExpr == nil || len(process.NDVIExpr.VarList) != 2 {
		t.Errorf("NDVI expression compilation failed, actual %v", process.NDVIExpr)
	}
	if process.LSTExpr == nil || process.LSTExpr.ExprNames[0] != "LST" {
		t.Errorf("LST expression compilation failed, actual %v", process.LSTExpr)
	}

	emptyDir, err := ioutil.TempDir("", "tvdi_config_empty")
	if err != nil {
		t.Errorf("failed to create temp dir: %v", err)
		return
	}
	defer os.RemoveAll(emptyDir)

	if _, err = LoadAllConfigFiles(emptyDir, false); err == nil {
		t.Errorf("expecting error for directory without config files")
	}
}

func TestParseQuery(t *testing.T) {
	query, err := ParseQuery(`SERVICE=WPS&Request=Execute&geometry_id=a\&b`)
	if err != nil {
		t.Errorf("query parsing failed, %v", err)
		return
	}
	if query["service"][0] != "WPS" {
		t.Errorf("case insensitive key failed, actual %v", query)
	}
	if query["request"][0] != "Execute" {
		t.Errorf("request parsing failed, actual %v", query)
	}
	if query["geometry_id"][0] != "a&b" {
		t.Errorf("escaped ampersand failed, actual %v", query["geometry_id"])
	}
}
