package services

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// LoggerService handles application logging with daily file rotation
type LoggerService struct {
	logDir     string
	logFile    *os.File
	logger     *log.Logger
	currentDay string
}

// NewLoggerService creates a logger writing under the given data path
func NewLoggerService(dataPath string) *LoggerService {
	service := &LoggerService{}
	service.initializeLogger(dataPath)
	return service
}

func (s *LoggerService) initializeLogger(dataPath string) {
	if dataPath == "" {
		dataPath = "."
	}
	s.logDir = filepath.Join(dataPath, "logs")

	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		log.Printf("Warning: could not create logs directory: %v", err)
		s.logDir = "logs"
		os.MkdirAll(s.logDir, 0755)
	}

	if err := s.rotateLogFile(); err != nil {
		log.Printf("Warning: could not create log file: %v. Logging to stdout only.", err)
		s.logger = log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile)
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		return
	}

	// Write to both the daily file and stdout
	multiWriter := io.MultiWriter(os.Stdout, s.logFile)
	s.logger = log.New(multiWriter, "", log.LstdFlags|log.Lshortfile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	s.LogInfo("Logger initialized", fmt.Sprintf("Log directory: %s", s.logDir))
}

// rotateLogFile creates a new log file for the current day
func (s *LoggerService) rotateLogFile() error {
	today := time.Now().Format("2006-01-02")
	if s.currentDay == today && s.logFile != nil {
		return nil
	}

	if s.logFile != nil {
		s.logFile.Close()
	}

	logFilePath := filepath.Join(s.logDir, today+".log")
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	s.logFile = file
	s.currentDay = today

	if s.logger != nil {
		multiWriter := io.MultiWriter(os.Stdout, s.logFile)
		s.logger.SetOutput(multiWriter)
		log.SetOutput(multiWriter)
	}

	return nil
}

func (s *LoggerService) write(level, message, detail string) {
	s.rotateLogFile()
	if detail != "" {
		message = message + " | " + detail
	}
	if s.logger != nil {
		s.logger.Printf("[%s] %s", level, message)
	} else {
		log.Printf("[%s] %s", level, message)
	}
}

// LogInfo records an informational event
func (s *LoggerService) LogInfo(message, detail string) {
	s.write("INFO", message, detail)
}

// LogWarning records a recoverable problem
func (s *LoggerService) LogWarning(message, detail string) {
	s.write("WARN", message, detail)
}

// LogError records a failure
func (s *LoggerService) LogError(message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.write("ERROR", message, detail)
}

// RecoverPanic logs a panic with its stack and keeps the agent running.
// Use as: defer logger.RecoverPanic("job worker")
func (s *LoggerService) RecoverPanic(where string) {
	if r := recover(); r != nil {
		s.write("PANIC", fmt.Sprintf("panic in %s: %v", where, r), string(debug.Stack()))
	}
}

// Close flushes and closes the current log file
func (s *LoggerService) Close() {
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}
