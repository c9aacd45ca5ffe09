package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

var EtcDir = "."
var DataDir = "."

type ServiceConfig struct {
	TVDIHostname string `json:"tvdi_hostname"`
	NameSpace    string
	MemcacheURI  string `json:"memcache_uri"`
	StoreDSN     string `json:"store_dsn"`
	TempDir      string `json:"temp_dir"`
}

// Process contains all the details that a WPS needs
// to be published and processed
type Process struct {
	Identifier     string     `json:"identifier"`
	Title          string     `json:"title"`
	Abstract       string     `json:"abstract"`
	MaxArea        float64    `json:"max_area"`
	DataSource     string     `json:"data_source"`
	Resolution     float64    `json:"resolution"`
	Concurrency    int        `json:"concurrency"`
	NDVIExpression string     `json:"ndvi_expression"`
	LSTExpression  string     `json:"lst_expression"`
	LiteralData    []LitData  `json:"literal_data"`
	ComplexData    []CompData `json:"complex_data"`

	NDVIExpr *BandExpressions
	LSTExpr  *BandExpressions
}

// LitData contains the description of a variable used to compute a
// WPS operation
type LitData struct {
	Identifier    string   `json:"identifier"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	DataType      string   `json:"data_type"`
	DataTypeRef   string   `json:"data_type_ref"`
	AllowedValues []string `json:"allowed_values"`
}

// CompData contains the description of a variable used to compute a
// WPS operation
type CompData struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	MimeType   string `json:"mime_type"`
	Encoding   string `json:"encoding"`
	Schema     string `json:"schema"`
}

// Config is the struct representing the configuration of a TVDI
// server. It holds the service wide settings as well as the list of
// WPS processes that can be served.
type Config struct {
	ServiceConfig ServiceConfig `json:"service_config"`
	Processes     []Process     `json:"processes"`
}

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

const DefaultConcurrency = 16
const DefaultResolution = 0.01

func LoadAllConfigFiles(rootDir string, verbose bool) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == "config.json" {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			if verbose {
				log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)
			}

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found under %s", rootDir)
	}

	return configMap, err
}

// LoadConfigFile unmarshalls the config.json document and compiles
// the band expressions of each process.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = json.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}

	for i, process := range config.Processes {
		if len(strings.TrimSpace(process.Identifier)) == 0 {
			return fmt.Errorf("Process %d in %s has no identifier", i, configFile)
		}

		if config.Processes[i].Concurrency <= 0 {
			config.Processes[i].Concurrency = DefaultConcurrency
		}
		if config.Processes[i].Resolution <= 0 {
			config.Processes[i].Resolution = DefaultResolution
		}

		ndviExprText := process.NDVIExpression
		if len(strings.TrimSpace(ndviExprText)) == 0 {
			ndviExprText = "NDVI=ndvi"
		}
		ndviExpr, err := ParseBandExpressions([]string{ndviExprText})
		if err != nil {
			return fmt.Errorf("Error parsing NDVI expression for process %s: %v", process.Identifier, err)
		}
		config.Processes[i].NDVIExpr = ndviExpr

		lstExprText := process.LSTExpression
		if len(strings.TrimSpace(lstExprText)) == 0 {
			lstExprText = "LST=lst"
		}
		lstExpr, err := ParseBandExpressions([]string{lstExprText})
		if err != nil {
			return fmt.Errorf("Error parsing LST expression for process %s: %v", process.Identifier, err)
		}
		config.Processes[i].LSTExpr = lstExpr
	}
	return nil
}

// Copy makes a shallow copy of the config with the service hostname
// filled from the request when the config leaves it empty.
func (config *Config) Copy(r *http.Request) *Config {
	newConf := *config
	if len(strings.TrimSpace(newConf.ServiceConfig.TVDIHostname)) == 0 {
		newConf.ServiceConfig.TVDIHostname = r.Host
	}
	return &newConf
}

func DumpConfig(configs map[string]*Config) (string, error) {
	configJson, err := json.MarshalIndent(configs, "", "    ")
	if err != nil {
		return "", err
	}
	return string(configJson), nil
}

func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config, verbose bool) {
	// Catch SIGHUP to automatically reload config
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-sighup:
				infoLog.Println("Caught SIGHUP, reloading config...")
				confMap, err := LoadAllConfigFiles(EtcDir, verbose)
				if err != nil {
					errLog.Printf("Error in loading config files: %v\n", err)
					return
				}

				for k := range *configMap {
					delete(*configMap, k)
				}

				for k := range confMap {
					(*configMap)[k] = confMap[k]
				}
			}
		}
	}()
}
