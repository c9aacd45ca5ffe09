package utils

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// RuntimeFileResolver locates data files such as the WPS templates
// across a colon separated list of directories. The current working
// directory and the directory of the running executable are always
// searched last. Lookup results are cached and safe for concurrent
// use.
type RuntimeFileResolver struct {
	DataDirs []string

	mu         sync.RWMutex
	fileLookup map[string]string
}

func NewRuntimeFileResolver(searchPath string) *RuntimeFileResolver {
	resolver := &RuntimeFileResolver{
		fileLookup: make(map[string]string),
	}

	for _, dataDir := range strings.Split(searchPath, ":") {
		dataDir = strings.TrimSpace(dataDir)
		if len(dataDir) == 0 {
			continue
		}
		resolver.DataDirs = append(resolver.DataDirs, dataDir)
	}

	cwd, err := os.Getwd()
	if err == nil {
		resolver.DataDirs = append(resolver.DataDirs, cwd)
	} else {
		log.Printf("Failed to get CWD: %v", err)
	}

	executablePath := filepath.Dir(os.Args[0])
	resolver.DataDirs = append(resolver.DataDirs, executablePath)
	return resolver
}

func (r *RuntimeFileResolver) Resolve(filePath string) (string, error) {
	if strings.HasPrefix(filePath, "/") {
		err := checkFile(filePath)
		return filePath, err
	}

	for _, dataDir := range r.DataDirs {
		path := path.Clean(path.Join(dataDir, filePath))
		if err := checkFile(path); err == nil {
			return path, nil
		}
	}

	return filePath, fmt.Errorf("Failed to resolve %v", filePath)
}

func (r *RuntimeFileResolver) Lookup(filePath string) (string, error) {
	r.mu.RLock()
	path, found := r.fileLookup[filePath]
	r.mu.RUnlock()
	if found {
		return path, nil
	}

	path, err := r.Resolve(filePath)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.fileLookup[filePath] = path
	r.mu.Unlock()
	return path, nil
}

func checkFile(filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return err
	}
	return nil
}
