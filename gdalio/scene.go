package gdalio

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nci/tvdi/raster"
	"github.com/nci/tvdi/utils"
)

// SceneVariable lists the granules holding one input variable of a
// scene. Granules of the same variable are mosaicked onto a single
// grid before any band math runs. The band index follows the GDAL
// convention and defaults to the first band.
type SceneVariable struct {
	Band     int      `yaml:"band"`
	Granules []string `yaml:"granules"`
}

// SceneDescriptor is the parsed form of one scene YAML document. A
// scene ties the granules of all input variables to a single
// acquisition date.
type SceneDescriptor struct {
	Path      string
	Date      time.Time
	DateStr   string                    `yaml:"date"`
	NoData    float64                   `yaml:"no_data"`
	Variables map[string]*SceneVariable `yaml:"variables"`
}

// LoadSceneDescriptor parses a scene YAML document. Granule paths are
// resolved relative to the descriptor location.
func LoadSceneDescriptor(filename string) (*SceneDescriptor, error) {
	rawData, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene descriptor %s: %v", filename, err)
	}

	desc := &SceneDescriptor{}
	err = yaml.Unmarshal(rawData, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene descriptor %s: %v", filename, err)
	}
	desc.Path = filename

	if len(strings.TrimSpace(desc.DateStr)) == 0 {
		return nil, fmt.Errorf("scene descriptor %s has no date", filename)
	}
	date, err := time.ParseInLocation(utils.ISOFormat, desc.DateStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date '%s' in scene descriptor %s: %v", desc.DateStr, filename, err)
	}
	desc.Date = date

	if desc.NoData == 0 {
		desc.NoData = DefaultNoData
	}

	if len(desc.Variables) == 0 {
		return nil, fmt.Errorf("scene descriptor %s has no variables", filename)
	}

	dsPath := filepath.Dir(filename)
	for name, variable := range desc.Variables {
		if variable == nil || len(variable.Granules) == 0 {
			return nil, fmt.Errorf("variable %s in scene descriptor %s has no granules", name, filename)
		}
		if variable.Band <= 0 {
			variable.Band = 1
		}
		for i, granule := range variable.Granules {
			if !filepath.IsAbs(granule) {
				variable.Granules[i] = filepath.Join(dsPath, granule)
			}
		}
	}

	return desc, nil
}

// ListSceneDescriptors returns the scene YAML documents under a
// directory in date order as given by their lexical file names.
func ListSceneDescriptors(rootDir string) ([]string, error) {
	var descriptors []string
	for _, ext := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(rootDir, ext))
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, matches...)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no scene descriptors found under %s", rootDir)
	}
	sort.Strings(descriptors)
	return descriptors, nil
}

// LoadVariableField mosaics the granules of one scene variable into a
// single field.
func (desc *SceneDescriptor) LoadVariableField(variable string) (*raster.Field, error) {
	sceneVar, found := desc.Variables[variable]
	if !found {
		return nil, fmt.Errorf("variable %s not found in scene descriptor %s", variable, desc.Path)
	}

	var granules []*raster.Field
	for _, path := range sceneVar.Granules {
		field, err := ReadField(path, sceneVar.Band, variable)
		if err != nil {
			return nil, err
		}
		granules = append(granules, field)
	}

	mosaic, err := raster.MosaicFields(granules)
	if err != nil {
		return nil, fmt.Errorf("failed to mosaic variable %s of scene %s: %v", variable, desc.Path, err)
	}
	return mosaic, nil
}

// LoadSceneField loads the variables referenced by a band expression
// and evaluates it into a single derived field.
func (desc *SceneDescriptor) LoadSceneField(bandExpr *utils.BandExpressions) (*raster.Field, error) {
	if bandExpr == nil || len(bandExpr.VarList) == 0 {
		return nil, fmt.Errorf("no band expression for scene %s", desc.Path)
	}

	vars := make(map[string]*raster.Field, len(bandExpr.VarList))
	for _, variable := range bandExpr.VarList {
		field, err := desc.LoadVariableField(variable)
		if err != nil {
			return nil, err
		}
		vars[variable] = field
	}

	return EvaluateBandExpression(bandExpr, vars, desc.NoData)
}

// LoadScenePair loads the NDVI and LST fields of one scene and checks
// they are co-registered.
func (desc *SceneDescriptor) LoadScenePair(ndviExpr, lstExpr *utils.BandExpressions) (*raster.Field, *raster.Field, error) {
	ndvi, err := desc.LoadSceneField(ndviExpr)
	if err != nil {
		return nil, nil, err
	}
	lst, err := desc.LoadSceneField(lstExpr)
	if err != nil {
		return nil, nil, err
	}
	if !ndvi.SameShape(lst) {
		return nil, nil, fmt.Errorf("scene %s: NDVI is %dx%d but LST is %dx%d",
			desc.Path, ndvi.Width, ndvi.Height, lst.Width, lst.Height)
	}
	return ndvi, lst, nil
}
