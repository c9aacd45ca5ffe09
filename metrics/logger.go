package metrics

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path"
	"strings"
	"time"
)

// Logger consumes the MetricsInfo records emitted at the end of each
// request.
type Logger interface {
	Log(info *MetricsInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		log.Print(infoStr)
	} else {
		log.Printf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 2000
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

const logFileName = "metrics.log"

// FileLogger appends the metrics records to a log file under LogDir.
// The file is rotated once it grows past MaxLogFileSize and at most
// MaxLogFiles rotated files are retained, overwriting the oldest one
// past that. Records are dropped when the queue is full.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	go logger.runLogWriter()
	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	select {
	case l.MetricsQueue <- info:
	default:
	}
}

func (l *FileLogger) runLogWriter() {
	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log open error: %v", err)
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger: info.ToJSON() error: %v", err)
			continue
		}

		f, err = l.tryRotateLogFile(f)
		if err != nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger: write error: %v", err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) openLogFile() (*os.File, error) {
	return os.OpenFile(path.Join(l.LogDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File) (*os.File, error) {
	info, err := currFile.Stat()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
		return currFile, nil
	}

	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	rotatedLogFilePath := ""
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := path.Join(l.LogDir, fmt.Sprintf("%s.%d", logFileName, i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			rotatedLogFilePath = filePath
			break
		}
	}

	if len(rotatedLogFilePath) == 0 {
		rotatedLogFilePath, err = l.oldestRotatedLogFile()
		if err != nil {
			log.Printf("FileLogger: log rotation error: %v", err)
			return currFile, nil
		}
		if l.Verbose {
			log.Printf("FileLogger: maximum number of log files reached, overwriting %s", rotatedLogFilePath)
		}
		if err := os.Remove(rotatedLogFilePath); err != nil {
			log.Printf("FileLogger: log rotation error: %v", err)
			return currFile, nil
		}
	}

	currFile.Close()
	if err := os.Rename(path.Join(l.LogDir, logFileName), rotatedLogFilePath); err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	} else if l.Verbose {
		log.Printf("FileLogger: log file rotated: %v", rotatedLogFilePath)
	}

	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	}
	return f, err
}

func (l *FileLogger) oldestRotatedLogFile() (string, error) {
	files, err := ioutil.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	oldestName := ""
	oldestTime := time.Now()
	for _, file := range files {
		if !file.Mode().IsRegular() {
			continue
		}
		if !strings.HasPrefix(file.Name(), logFileName+".") {
			continue
		}
		if file.ModTime().Before(oldestTime) {
			oldestName = file.Name()
			oldestTime = file.ModTime()
		}
	}

	if len(oldestName) == 0 {
		return path.Join(l.LogDir, fmt.Sprintf("%s.%d", logFileName, 0)), nil
	}
	return path.Join(l.LogDir, oldestName), nil
}
