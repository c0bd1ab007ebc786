package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// openRotatingLog creates a timestamped log file under dir and tees log
// output to both it and stderr, mirroring the teacher's setupLogging in
// Sxcution-MonAndroid/backend/main.go (log/2025-12-08_21-52-35.log).
func openRotatingLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(dir, timestamp+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stderr, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("📝 logging to %s", logPath)
	return logFile, nil
}
