package main

/* batch computes TVDI products for every scene described under a
   directory of YAML scene descriptors and writes one GeoTIFF per
   scene. The tool shares the processing pipeline with the WPS server
   and is intended for bulk reprocessing jobs where no server is
   running. */

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"path/filepath"
	"sort"

	"github.com/nci/tvdi/gdalio"
	proc "github.com/nci/tvdi/processor"
	"github.com/nci/tvdi/raster"
	"github.com/nci/tvdi/store"
	"github.com/nci/tvdi/utils"

	geo "github.com/nci/geometry"
)

var (
	sceneDir    = flag.String("scene_dir", "", "Directory holding the YAML scene descriptors.")
	outDir      = flag.String("o", ".", "Output directory for the TVDI GeoTIFF files.")
	geomFile    = flag.String("geom", "", "GeoJSON file restricting the computation to a region of interest.")
	resolution  = flag.Float64("resolution", utils.DefaultResolution, "Expected pixel size of the scene rasters, validated against their geotransforms.")
	concurrency = flag.Int("conc", utils.DefaultConcurrency, "Number of NDVI intervals classified concurrently.")
	ndviExprStr = flag.String("ndvi_expr", "NDVI=ndvi", "Band expression computing NDVI out of the scene variables.")
	lstExprStr  = flag.String("lst_expr", "LST=lst", "Band expression computing LST out of the scene variables.")
	storeDSN    = flag.String("db", "", "Postgres DSN for recording the runs. Empty disables the store.")
	geometryID  = flag.String("geometry_id", "", "Identifier recorded against the stored runs.")
	verbose     = flag.Bool("v", false, "Verbose mode for more outputs.")
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// loadGeometry accepts a GeoJSON FeatureCollection, Feature or bare
// geometry file and returns the geometry object in every case.
func loadGeometry(path string) ([]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error while reading %s: %v", path, err)
	}

	var featCol geo.FeatureCollection
	if err := json.Unmarshal(data, &featCol); err == nil && len(featCol.Features) > 0 {
		return json.Marshal(featCol.Features[0].Geometry)
	}

	var feat geo.Feature
	if err := json.Unmarshal(data, &feat); err == nil && feat.Geometry != nil {
		return json.Marshal(feat.Geometry)
	}

	return data, nil
}

func main() {
	flag.Parse()

	if len(*sceneDir) == 0 {
		log.Fatal("Please provide a scene directory with -scene_dir")
	}

	gdalio.Register()

	ndviExpr, err := utils.ParseBandExpressions([]string{*ndviExprStr})
	ensure(err)
	lstExpr, err := utils.ParseBandExpressions([]string{*lstExprStr})
	ensure(err)

	descriptorFiles, err := gdalio.ListSceneDescriptors(*sceneDir)
	ensure(err)

	var scenes []*gdalio.SceneDescriptor
	for _, filename := range descriptorFiles {
		desc, err := gdalio.LoadSceneDescriptor(filename)
		ensure(err)
		scenes = append(scenes, desc)
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Date.Before(scenes[j].Date) })

	var ndviSeq, lstSeq []*raster.Field
	for _, desc := range scenes {
		if *verbose {
			log.Printf("loading scene '%v' (%v)", desc.Path, desc.Date.Format(utils.ISOFormat))
		}
		ndvi, lst, err := desc.LoadScenePair(ndviExpr, lstExpr)
		ensure(err)
		if len(ndviSeq) > 0 && !ndviSeq[0].SameShape(ndvi) {
			log.Fatalf("scene %s is not on the grid of the first scene", desc.Path)
		}
		ndviSeq = append(ndviSeq, ndvi)
		lstSeq = append(lstSeq, lst)
	}

	first := ndviSeq[0]
	var roi *raster.Mask
	if len(*geomFile) > 0 {
		if len(first.GeoTransform) != 6 {
			log.Fatal("The scene granules are not georeferenced, -geom cannot be applied")
		}
		geomJSON, err := loadGeometry(*geomFile)
		ensure(err)
		roi, err = raster.RasterizeGeometry(geomJSON, first.GeoTransform, first.Width, first.Height)
		ensure(err)
		if roi.Count() == 0 {
			log.Fatal("The geometry does not intersect the scene grid")
		}
	} else {
		roi = raster.FullMask(first.Width, first.Height)
	}

	runStore, err := store.NewTVDIStore(*storeDSN, "", 4, 16)
	ensure(err)
	defer runStore.Close()
	ensure(runStore.EnsureSchema())

	results, err := proc.RunTVDISequence(context.Background(), ndviSeq, lstSeq, roi, *resolution, *concurrency)
	ensure(err)

	nFailed := 0
	for _, res := range results {
		desc := scenes[res.Index]
		dateStr := desc.Date.Format("20060102")

		run := &store.Run{
			GeometryID: *geometryID,
			SceneDate:  desc.Date,
			PairIndex:  res.Index,
		}

		if res.Err != nil {
			nFailed++
			run.Status = "error"
			run.ErrorMsg = res.Err.Error()
			log.Printf("%s: %v", desc.Path, res.Err)
		} else {
			outPath := filepath.Join(*outDir, fmt.Sprintf("tvdi_%s.tif", dateStr))
			ensure(gdalio.WriteField(outPath, res.TVDI))

			mean, n := raster.Mean(res.TVDI, roi)
			run.Status = "ok"
			run.DryOffset = res.Fit.Offset
			run.DrySlope = res.Fit.Slope
			run.WetLSTMin = res.Fit.LSTMin
			run.DryPixels = res.Fit.DryPixels
			run.WetPixels = res.Fit.WetPixels
			log.Printf("%s: dry edge %.4f%+.4f*NDVI, wet edge %.4f, mean TVDI %.4f over %d pixels -> %s",
				dateStr, res.Fit.Offset, res.Fit.Slope, res.Fit.LSTMin, mean, n, outPath)
		}

		if err := runStore.SaveRun(run); err != nil {
			log.Printf("failed to record run for %s: %v", dateStr, err)
		}
	}

	log.Printf("processed %d scenes, %d failed", len(results), nFailed)
}
