package config

import (
	"fmt"
	"os"
	"time"
)

// FileSettings exposes the meter settings section of a config file to
// the config sender's change-detection poll.
//
// The sender compares ModTime against its last observed value and calls
// Meters to re-read the settings when the file has changed.
type FileSettings struct {
	path string
}

// NewFileSettings returns a FileSettings reading from the given path.
func NewFileSettings(path string) *FileSettings {
	return &FileSettings{path: path}
}

// ModTime returns the configuration file's modification timestamp.
func (f *FileSettings) ModTime() (time.Time, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat config file: %w", err)
	}
	return info.ModTime(), nil
}

// Meters re-reads the file and returns the current meter settings.
func (f *FileSettings) Meters() (MeterConfig, error) {
	cfg, err := Load(f.path)
	if err != nil {
		return MeterConfig{}, err
	}
	return cfg.Meters, nil
}
