package main

/* tvdi is a web server implementing the WPS protocol to compute the
   Temperature Vegetation Dryness Index over co-registered NDVI and
   LST scenes. This server is intended to be consumed directly by
   users and exposes its processes through the GetCapabilities.xml
   document. Configuration of the server is specified in the
   config.json file where processes, band expressions and scene
   locations can be defined.
   Scenes are described by YAML documents listing the GeoTIFF granules
   of each input variable; the index itself is computed entirely in
   process by the pipeline under processor. */

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nci/tvdi/gdalio"
	"github.com/nci/tvdi/metrics"
	proc "github.com/nci/tvdi/processor"
	"github.com/nci/tvdi/raster"
	"github.com/nci/tvdi/store"
	"github.com/nci/tvdi/utils"

	_ "net/http/pprof"

	reuseport "github.com/kavu/go_reuseport"
	geo "github.com/nci/geometry"
)

// Global variable to hold the values specified
// on the config.json document.
var configMap map[string]*utils.Config

var (
	port            = flag.Int("p", 8080, "Server listening port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server log directory.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	dumpConfig      = flag.Bool("dump_conf", false, "Dump server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var reWPSMap map[string]*regexp.Regexp

var (
	Error *log.Logger
	Info  *log.Logger
)

var metricsLogger metrics.Logger
var tvdiStore *store.TVDIStore
var fileResolver *utils.RuntimeFileResolver

// init initialises the loggers and compiles the WPS parameter
// validation patterns. Flag parsing, config loading and everything
// else touching the runtime environment happens at the top of main.
func init() {
	Error = log.New(os.Stderr, "TVDI: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "TVDI: ", log.Ldate|log.Ltime|log.Lshortfile)

	reWPSMap = utils.CompileWPSRegexMap()
}

// loadScenes collects the scene descriptors of a process that fall
// inside the requested time range, ordered by acquisition date.
func loadScenes(process *utils.Process, startDateTime, endDateTime time.Time) ([]*gdalio.SceneDescriptor, error) {
	descriptorFiles, err := gdalio.ListSceneDescriptors(process.DataSource)
	if err != nil {
		return nil, err
	}

	var scenes []*gdalio.SceneDescriptor
	for _, filename := range descriptorFiles {
		desc, err := gdalio.LoadSceneDescriptor(filename)
		if err != nil {
			return nil, err
		}
		if !startDateTime.IsZero() && desc.Date.Before(startDateTime) {
			continue
		}
		if desc.Date.After(endDateTime) {
			continue
		}
		scenes = append(scenes, desc)
	}

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Date.Before(scenes[j].Date) })
	return scenes, nil
}

func countGranules(desc *gdalio.SceneDescriptor) int {
	total := 0
	for _, variable := range desc.Variables {
		total += len(variable.Granules)
	}
	return total
}

// clipField masks out the values falling outside [lower, upper].
func clipField(f *raster.Field, lower, upper float32, hasLower, hasUpper bool) (*raster.Field, error) {
	var mask *raster.Mask
	switch {
	case hasLower && hasUpper:
		m, err := f.MaskGreaterEqual(float64(lower)).And(f.MaskLessEqual(float64(upper)))
		if err != nil {
			return nil, err
		}
		mask = m
	case hasLower:
		mask = f.MaskGreaterEqual(float64(lower))
	case hasUpper:
		mask = f.MaskLessEqual(float64(upper))
	default:
		return f, nil
	}
	return f.ApplyMask(mask)
}

func serveWPS(ctx context.Context, params utils.WPSParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if params.Request == nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Malformed WPS, a Request field needs to be specified", 400)
		return
	}

	reqURL := r.URL.String()

	switch *params.Request {
	case "GetCapabilities":
		newConf := conf.Copy(r)
		tplPath, _ := fileResolver.Lookup("templates/WPS_GetCapabilities.tpl")
		err := utils.ExecuteWriteTemplateFile(w, newConf, tplPath)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}
	case "DescribeProcess":
		idx, err := utils.GetProcessIndex(params, conf)
		if err != nil {
			Error.Printf("Requested process not found: %v, %v\n", err, reqURL)
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("%v: %s", err, reqURL), 400)
			return
		}
		process := conf.Processes[idx]
		tplPath, _ := fileResolver.Lookup("templates/WPS_DescribeProcess.tpl")
		err = utils.ExecuteWriteTemplateFile(w, process, tplPath)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}
	case "Execute":
		idx, err := utils.GetProcessIndex(params, conf)
		if err != nil {
			Error.Printf("Requested process not found: %v, %v\n", err, reqURL)
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("%v: %s", err, reqURL), 400)
			return
		}
		process := &conf.Processes[idx]
		if len(strings.TrimSpace(process.DataSource)) == 0 {
			Error.Printf("No data source specified")
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "No data source specified", 500)
			return
		}

		if len(params.FeatCol.Features) == 0 {
			Info.Printf("The request does not contain the 'feature' property.\n")
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "The request does not contain the 'feature' property", 400)
			return
		}

		var feat []byte
		geom := params.FeatCol.Features[0].Geometry
		switch geom := geom.(type) {

		case *geo.Polygon, *geo.MultiPolygon:
			area := utils.GetArea(geom)
			metricsCollector.Info.Pipeline.GeometryArea = area
			if *verbose {
				log.Println("Requested polygon has an area of", area)
			}
			if area == 0.0 || (process.MaxArea > 0 && area > process.MaxArea) {
				Info.Printf("The requested area %.02f, is too large.\n", area)
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, "The requested area is too large. Please try with a smaller one.", 400)
				return
			}
			feat, _ = json.Marshal(geom)

		default:
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "Geometry not supported. Only Features containing Polygon or MultiPolygon are available.", 400)
			return
		}
		metricsCollector.Info.Pipeline.Geometry = string(feat)

		startDateTime := time.Time{}
		if st, errT := time.Parse(utils.ISOFormat, *params.StartDateTime); errT == nil {
			startDateTime = st
		} else if len(*params.StartDateTime) > 0 {
			Info.Printf("invalid input start date '%v' with error '%v'", *params.StartDateTime, errT)
		}

		endDateTime := time.Now().UTC()
		if dt, errT := time.Parse(utils.ISOFormat, *params.EndDateTime); errT == nil && !dt.IsZero() {
			endDateTime = dt
		}

		var geometryID string
		if params.GeometryId != nil {
			geometryID = strings.TrimSpace(*params.GeometryId)
		}

		cacheKey := store.CacheKey(reqURL + string(feat) +
			startDateTime.Format(utils.ISOFormat) + endDateTime.Format(utils.ISOFormat))
		if cached, ok := tvdiStore.GetCached(cacheKey); ok {
			if *verbose {
				Info.Printf("WPS: cache hit for %v", reqURL)
			}
			w.Write(cached)
			return
		}

		scenes, err := loadScenes(process, startDateTime, endDateTime)
		if err != nil {
			Error.Printf("WPS: scene loading error: %v\n", err)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		if len(scenes) == 0 {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "No scenes found within the requested period", 400)
			return
		}

		t0 := time.Now()
		var ndviSeq, lstSeq []*raster.Field
		for _, desc := range scenes {
			if *verbose {
				log.Printf("WPS: loading scene '%v' (%v)", desc.Path, desc.Date.Format(utils.ISOFormat))
			}

			ndvi, lst, err := desc.LoadScenePair(process.NDVIExpr, process.LSTExpr)
			if err != nil {
				Error.Printf("WPS: scene loading error: %v\n", err)
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, err.Error(), 500)
				return
			}

			ndviLower, hasNdviLower := params.ClipLowers["ndvi_clip_lower"]
			ndviUpper, hasNdviUpper := params.ClipUppers["ndvi_clip_upper"]
			if hasNdviLower && hasNdviUpper && ndviLower > ndviUpper {
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, "clipLower greater than clipUpper", 400)
				return
			}
			ndvi, err = clipField(ndvi, ndviLower, ndviUpper, hasNdviLower, hasNdviUpper)
			if err != nil {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, err.Error(), 500)
				return
			}

			lstLower, hasLstLower := params.ClipLowers["lst_clip_lower"]
			lstUpper, hasLstUpper := params.ClipUppers["lst_clip_upper"]
			if hasLstLower && hasLstUpper && lstLower > lstUpper {
				metricsCollector.Info.HTTPStatus = 400
				http.Error(w, "clipLower greater than clipUpper", 400)
				return
			}
			lst, err = clipField(lst, lstLower, lstUpper, hasLstLower, hasLstUpper)
			if err != nil {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, err.Error(), 500)
				return
			}

			if len(ndviSeq) > 0 && !ndviSeq[0].SameShape(ndvi) {
				metricsCollector.Info.HTTPStatus = 500
				http.Error(w, fmt.Sprintf("scene %s is not on the grid of the first scene", desc.Path), 500)
				return
			}

			ndviSeq = append(ndviSeq, ndvi)
			lstSeq = append(lstSeq, lst)
			metricsCollector.Info.Pipeline.NumGranules += countGranules(desc)
		}

		if len(ndviSeq[0].GeoTransform) != 6 {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "The scene granules are not georeferenced", 500)
			return
		}

		roi, err := raster.RasterizeGeometry(feat, ndviSeq[0].GeoTransform,
			ndviSeq[0].Width, ndviSeq[0].Height)
		if err != nil {
			Error.Printf("WPS: geometry rasterisation error: %v\n", err)
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, err.Error(), 400)
			return
		}
		if roi.Count() == 0 {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "The requested geometry does not intersect the scene grid", 400)
			return
		}

		results, err := proc.RunTVDISequence(ctx, ndviSeq, lstSeq, roi, process.Resolution, process.Concurrency)
		if err != nil {
			Error.Printf("WPS: pipeline error: %v\n", err)
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		metricsCollector.Info.Pipeline.Duration = time.Since(t0)

		// The CSV newlines are escaped so that the result embeds
		// into the JSON blob of the Execute template.
		var csv bytes.Buffer
		fmt.Fprint(&csv, "date,status,dry_offset,dry_slope,wet_lst_min,tvdi_mean,valid_pixels")
		fmt.Fprint(&csv, "\\n")
		for _, res := range results {
			desc := scenes[res.Index]
			run := &store.Run{
				GeometryID: geometryID,
				SceneDate:  desc.Date,
				PairIndex:  res.Index,
			}

			metricsCollector.Info.Pipeline.NumPairs++
			if res.Err != nil {
				metricsCollector.Info.Pipeline.NumFailedPairs++
				run.Status = "error"
				run.ErrorMsg = res.Err.Error()
				fmt.Fprintf(&csv, "%s,error,,,,,", desc.Date.Format(utils.ISOFormat))
			} else {
				mean, n := raster.Mean(res.TVDI, roi)
				run.Status = "ok"
				run.DryOffset = res.Fit.Offset
				run.DrySlope = res.Fit.Slope
				run.WetLSTMin = res.Fit.LSTMin
				run.DryPixels = res.Fit.DryPixels
				run.WetPixels = res.Fit.WetPixels
				metricsCollector.Info.Pipeline.DryPixels += res.Fit.DryPixels
				metricsCollector.Info.Pipeline.WetPixels += res.Fit.WetPixels
				fmt.Fprintf(&csv, "%s,ok,%f,%f,%f,%f,%d",
					desc.Date.Format(utils.ISOFormat),
					res.Fit.Offset, res.Fit.Slope, res.Fit.LSTMin, mean, n)
			}
			fmt.Fprint(&csv, "\\n")

			if err := tvdiStore.SaveRun(run); err != nil {
				Error.Printf("WPS: run store error: %v\n", err)
			}
		}

		var out bytes.Buffer
		tplPath, _ := fileResolver.Lookup("templates/WPS_Execute.tpl")
		err = utils.ExecuteWriteTemplateFile(&out, csv.String(), tplPath)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}

		w.Write(out.Bytes())
		tvdiStore.PutCached(cacheKey, out.Bytes())

	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("%s not recognised.", *params.Request), 400)
	}
}

// generalHandler handles every request received on /ows
func generalHandler(conf *utils.Config, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	if *verbose {
		Info.Printf("%s\n", r.URL.String())
	}
	ctx := r.Context()

	metricsCollector := metrics.NewMetricsCollector(metricsLogger)
	defer metricsCollector.Log()

	t0 := time.Now()
	metricsCollector.Info.ReqTime = t0.Format(utils.ISOFormat)
	defer func() { metricsCollector.Info.ReqDuration = time.Since(t0) }()

	reqUrl, e := url.QueryUnescape(r.URL.String())
	if e == nil {
		metricsCollector.Info.URL.RawURL = reqUrl
	} else {
		metricsCollector.Info.URL.RawURL = r.URL.String()
	}

	metricsCollector.Info.RemoteAddr = utils.ParseRemoteAddr(r)
	metricsCollector.Info.HTTPStatus = 200

	var query map[string][]string
	var err error
	switch r.Method {
	case "POST":
		query, err = utils.ParsePost(r.Body)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Error parsing WPS POST payload: %s", err), 400)
			return
		}

	case "GET":
		query, err = utils.ParseQuery(r.URL.RawQuery)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Failed to parse query: %v", err), 400)
			return
		}
	}

	if _, fOK := query["service"]; !fOK {
		canInferService := false
		if request, hasReq := query["request"]; hasReq {
			reqService := map[string]string{
				"GetCapabilities": "WPS",
				"DescribeProcess": "WPS",
				"Execute":         "WPS",
			}
			if service, found := reqService[request[0]]; found {
				query["service"] = []string{service}
				canInferService = true
			}
		}

		if !canInferService {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Not a WPS request. Request does not contain a 'service' parameter."), 400)
			return
		}
	}

	switch query["service"][0] {
	case "WPS":
		params, err := utils.WPSParamsChecker(query, reWPSMap)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Wrong WPS parameters on URL: %s", err), 400)
			return
		}
		serveWPS(ctx, params, conf, r, w, metricsCollector)
	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Not a valid WPS request. URL %s does not contain a valid 'service' parameter.", r.URL.String()), 400)
		return
	}
}

// owsHandler resolves the dataset namespace out of the request path
// before handing over to the general handler.
func owsHandler(w http.ResponseWriter, r *http.Request) {
	namespace := "."
	if len(r.URL.Path) > len("/ows/") {
		namespace = r.URL.Path[len("/ows/"):]
	}
	config, ok := configMap[namespace]
	if !ok {
		Info.Printf("Invalid dataset namespace: %v for url: %v\n", namespace, r.URL.Path)
		http.Error(w, fmt.Sprintf("Invalid dataset namespace: %v\n", namespace), 404)
		return
	}
	config.ServiceConfig.NameSpace = namespace
	generalHandler(config, w, r)
}

func fileHandler(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
		r.URL.Path = upath
	}
	upath = path.Clean(upath)
	upath = filepath.Join(utils.DataDir+"/static", upath)

	if *verbose {
		Info.Printf("%s -> %s\n", r.URL.String(), upath)
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	http.ServeFile(w, r, upath)
}

func main() {
	flag.Parse()

	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	fileResolver = utils.NewRuntimeFileResolver(utils.DataDir)

	filePaths := []string{
		"templates/WPS_DescribeProcess.tpl",
		"templates/WPS_Execute.tpl",
		"templates/WPS_GetCapabilities.tpl"}

	for _, filePath := range filePaths {
		if _, err := fileResolver.Lookup(filePath); err != nil {
			panic(err)
		}
	}

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir, *verbose)
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		panic(err)
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		configJson, err := utils.DumpConfig(confMap)
		if err != nil {
			Error.Printf("Error in dumping configs: %v\n", err)
		} else {
			log.Print(configJson)
		}
		os.Exit(0)
	}

	configMap = confMap

	utils.WatchConfig(Info, Error, &configMap, *verbose)

	gdalio.Register()

	rootConfig, hasRoot := configMap["."]
	if !hasRoot {
		for _, config := range configMap {
			rootConfig = config
			break
		}
	}

	tvdiStore, err = store.NewTVDIStore(rootConfig.ServiceConfig.StoreDSN,
		rootConfig.ServiceConfig.MemcacheURI, 8, 64)
	if err != nil {
		Error.Printf("Error in opening the run store: %v\n", err)
		panic(err)
	}
	if err := tvdiStore.EnsureSchema(); err != nil {
		Error.Printf("Error in preparing the run store schema: %v\n", err)
	}

	if len(*serverLogDir) > 0 {
		if *serverLogDir == "-" {
			metricsLogger = metrics.NewStdoutLogger()
		} else {
			maxLogFileSize := int64(0)
			if val, ok := os.LookupEnv("TVDI_MAX_LOG_FILE_SIZE"); ok {
				valInt, e := strconv.ParseInt(val, 10, 64)
				if e == nil {
					maxLogFileSize = valInt
				} else {
					Error.Printf("invalid TVDI_MAX_LOG_FILE_SIZE: %v", e)
				}
			}

			maxLogFiles := -1
			if val, ok := os.LookupEnv("TVDI_MAX_LOG_FILES"); ok {
				valInt, e := strconv.ParseInt(val, 10, 32)
				if e == nil {
					maxLogFiles = int(valInt)
				} else {
					Error.Printf("invalid TVDI_MAX_LOG_FILES: %v", e)
				}
			}

			metricsLogger = metrics.NewFileLogger(*serverLogDir, maxLogFileSize, maxLogFiles, *verbose)
		}
	}

	http.HandleFunc("/", fileHandler)
	http.HandleFunc("/ows", owsHandler)
	http.HandleFunc("/ows/", owsHandler)

	listener, err := reuseport.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", *port))
	if err != nil {
		Error.Fatalf("Failed to listen on port %d: %v", *port, err)
	}

	Info.Printf("TVDI server is ready")
	log.Fatal(http.Serve(listener, nil))
}
