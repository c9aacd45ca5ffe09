package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nci/tvdi/store"
	"github.com/nci/tvdi/utils"
)

func testWPSConfig(dataSource string) *utils.Config {
	return &utils.Config{
		Processes: []utils.Process{{
			Identifier: "TVDI",
			MaxArea:    1,
			DataSource: dataSource,
		}},
	}
}

func TestWPSExecuteAreaTooLarge(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<wps:Execute version="1.0.0" service="WPS">
  <ows:Identifier>TVDI</ows:Identifier>
  <wps:DataInputs>
    <wps:Input>
      <ows:Identifier>geometry</ows:Identifier>
      <wps:Data>
        <wps:ComplexData>{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[10,10],[18,10],[18,18],[10,18],[10,10]]]}}]}</wps:ComplexData>
      </wps:Data>
    </wps:Input>
  </wps:DataInputs>
</wps:Execute>`

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/ows", strings.NewReader(body))
	generalHandler(testWPSConfig("scenes"), w, r)

	if w.Code != 400 {
		t.Errorf("oversized polygon expecting status 400, actual %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "too large") {
		t.Errorf("oversized polygon expecting an area message, actual %q", w.Body.String())
	}
}

func TestWPSExecuteBadFeatureCollection(t *testing.T) {
	conf := testWPSConfig("scenes")

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/ows?service=WPS&request=Execute&identifier=TVDI&geometry="+
		url.QueryEscape("geometry=not-a-feature-collection"), nil)
	generalHandler(conf, w, r)
	if w.Code != 400 {
		t.Errorf("malformed feature collection expecting status 400, actual %d", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/ows?service=WPS&request=Execute&identifier=TVDI&geometry="+
		url.QueryEscape(`geometry={"type":"FeatureCollection","features":[]}`), nil)
	generalHandler(conf, w, r)
	if w.Code != 400 {
		t.Errorf("featureless collection expecting status 400, actual %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "feature") {
		t.Errorf("featureless collection expecting a feature message, actual %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/ows?service=WPS&request=Execute&identifier=TVDI&geometry="+
		url.QueryEscape(`geometry={"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[10,10]}}]}`), nil)
	generalHandler(conf, w, r)
	if w.Code != 400 {
		t.Errorf("point geometry expecting status 400, actual %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not supported") {
		t.Errorf("point geometry expecting an unsupported message, actual %q", w.Body.String())
	}
}

func TestWPSExecuteCachedResponse(t *testing.T) {
	mc := newFakeMemcached(t)
	defer mc.Close()

	st, err := store.NewTVDIStore("", mc.addr(), 1, 1)
	if err != nil {
		t.Errorf("store construction failed, %v", err)
		return
	}
	defer st.Close()
	prevStore := tvdiStore
	tvdiStore = st
	defer func() { tvdiStore = prevStore }()

	tmpDir, err := ioutil.TempDir("", "tvdi_wps")
	if err != nil {
		t.Errorf("failed to create temp dir: %v", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	// one scene before the requested period, so an uncached request
	// falls through to the scene filter and stops there
	sceneYAML := `date: 2019-06-01T00:00:00.000Z
variables:
  ndvi:
    granules:
      - ndvi.tif
  lst:
    granules:
      - lst.tif
`
	if err := ioutil.WriteFile(filepath.Join(tmpDir, "scene_20190601.yaml"), []byte(sceneYAML), 0644); err != nil {
		t.Errorf("failed to write scene file: %v", err)
		return
	}
	conf := testWPSConfig(tmpDir)

	fc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[10,10],[10.2,10],[10.2,10.2],[10,10.2],[10,10]]]}}]}`
	startJSON := `{"properties":{"timestamp":{"date-time":"2020-01-01T00:00"}}}`
	endJSON := `{"properties":{"timestamp":{"date-time":"2020-06-01T00:00"}}}`
	target := "/ows?service=WPS&request=Execute&identifier=TVDI" +
		"&geometry=" + url.QueryEscape("geometry="+fc) +
		"&start_datetime=" + url.QueryEscape(startJSON) +
		"&end_datetime=" + url.QueryEscape(endJSON)

	w := httptest.NewRecorder()
	generalHandler(conf, w, httptest.NewRequest("GET", target, nil))
	if w.Code != 400 || !strings.Contains(w.Body.String(), "No scenes") {
		t.Errorf("uncached request expecting 400 without scenes, actual %d %q", w.Code, w.Body.String())
		return
	}

	// derive the cache key the same way the Execute handler does
	params, err := utils.WPSParamsChecker(map[string][]string{
		"service":        {"WPS"},
		"request":        {"Execute"},
		"identifier":     {"TVDI"},
		"geometry":       {"geometry=" + fc},
		"start_datetime": {startJSON},
		"end_datetime":   {endJSON},
	}, reWPSMap)
	if err != nil {
		t.Errorf("WPS params check failed, %v", err)
		return
	}
	feat, err := json.Marshal(params.FeatCol.Features[0].Geometry)
	if err != nil {
		t.Errorf("geometry marshalling failed, %v", err)
		return
	}
	start, err := time.Parse(utils.ISOFormat, *params.StartDateTime)
	if err != nil {
		t.Errorf("start datetime parsing failed, %v", err)
		return
	}
	end, err := time.Parse(utils.ISOFormat, *params.EndDateTime)
	if err != nil {
		t.Errorf("end datetime parsing failed, %v", err)
		return
	}
	key := store.CacheKey(target + string(feat) +
		start.Format(utils.ISOFormat) + end.Format(utils.ISOFormat))

	cached := []byte("<wps:ExecuteResponse>cached tvdi response</wps:ExecuteResponse>")
	tvdiStore.PutCached(key, cached)

	w = httptest.NewRecorder()
	generalHandler(conf, w, httptest.NewRequest("GET", target, nil))
	if w.Code != 200 {
		t.Errorf("cached request expecting status 200, actual %d", w.Code)
		return
	}
	if !bytes.Equal(w.Body.Bytes(), cached) {
		t.Errorf("cached response must come back byte for byte, actual %q", w.Body.String())
	}
}

// fakeMemcached speaks just enough of the memcached text protocol to
// back the response cache in tests.
type fakeMemcached struct {
	ln    net.Listener
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeMemcached(t *testing.T) *fakeMemcached {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake memcached listen failed, %v", err)
	}
	mc := &fakeMemcached{ln: ln, items: make(map[string][]byte)}
	go mc.serve()
	return mc
}

func (mc *fakeMemcached) addr() string { return mc.ln.Addr().String() }

func (mc *fakeMemcached) Close() { mc.ln.Close() }

func (mc *fakeMemcached) serve() {
	for {
		conn, err := mc.ln.Accept()
		if err != nil {
			return
		}
		go mc.handle(conn)
	}
}

func (mc *fakeMemcached) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "get", "gets":
			mc.mu.Lock()
			for _, key := range fields[1:] {
				if value, ok := mc.items[key]; ok {
					fmt.Fprintf(conn, "VALUE %s 0 %d\r\n", key, len(value))
					conn.Write(value)
					io.WriteString(conn, "\r\n")
				}
			}
			mc.mu.Unlock()
			io.WriteString(conn, "END\r\n")
		case "set":
			if len(fields) < 5 {
				io.WriteString(conn, "ERROR\r\n")
				return
			}
			size, err := strconv.Atoi(fields[4])
			if err != nil {
				io.WriteString(conn, "ERROR\r\n")
				return
			}
			value := make([]byte, size+2)
			if _, err := io.ReadFull(rd, value); err != nil {
				return
			}
			mc.mu.Lock()
			mc.items[fields[1]] = value[:size]
			mc.mu.Unlock()
			io.WriteString(conn, "STORED\r\n")
		default:
			io.WriteString(conn, "ERROR\r\n")
		}
	}
}
