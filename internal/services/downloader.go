package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/ui"
)

// Downloader persists a completed order's result files under a per-site
// directory. A file already on disk is never fetched again unless the
// overwrite flag is set; existence of the local path is the whole
// idempotence check.
type Downloader struct {
	config     models.DownloadConfig
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewDownloader creates a result file downloader
func NewDownloader(config models.DownloadConfig, httpClient *HTTPClient, logger *lib.Logger) *Downloader {
	return &Downloader{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Download fetches every eligible result file into destDir and returns a
// mapping from the result's logical name to its local path, for files
// downloaded now and files already present alike. A single failed transfer
// is recorded and skipped so the remaining files still land; the collected
// failures come back as one joined error after the loop.
func (d *Downloader) Download(results []models.OrderResult, destDir string, showProgress bool) (map[string]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	d.logger.Info("Downloading order results", "count", len(results), "destination", destDir)

	var bar *ui.ProgressBar
	if showProgress {
		bar = ui.NewProgressBar(int64(len(results)), fmt.Sprintf("Downloading %d result files", len(results)))
		defer func() { _ = bar.Finish() }()
	}

	paths := make(map[string]string)
	var failures []error

	for _, result := range results {
		d.fetchResult(result, destDir, paths, &failures)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	return paths, errors.Join(failures...)
}

// fetchResult handles one manifest entry: filtered and already-present
// files are resolved without a transfer, failures are appended to failures.
func (d *Downloader) fetchResult(result models.OrderResult, destDir string, paths map[string]string, failures *[]error) {
	fileName := filepath.Base(result.Name)

	// The per-order manifest is never needed locally
	if strings.Contains(fileName, "manifest") {
		d.logger.Debug("Skipping manifest", "name", result.Name)
		return
	}
	if !d.keepFile(fileName) {
		d.logger.Debug("Skipping file outside extension filter", "name", result.Name)
		return
	}

	destPath := filepath.Join(destDir, fileName)

	if !d.config.Overwrite {
		if _, err := os.Stat(destPath); err == nil {
			d.logger.Debug("Already downloaded, skipping", "file", fileName)
			paths[result.Name] = destPath
			return
		}
	}

	written, err := d.downloadFile(result.Location, destPath)
	if err != nil {
		d.logger.Error("File download failed, continuing with remaining files",
			"file", fileName, "error", err)
		*failures = append(*failures, &lib.DownloadError{Name: result.Name, Location: result.Location, Err: err})
		return
	}

	d.logger.Info("Downloaded", "file", fileName, "bytes", written)
	paths[result.Name] = destPath
}

// downloadFile fetches one result location into destPath. Result locations
// are pre-signed, so no credentials are attached; redirects are followed
// by the underlying client.
func (d *Downloader) downloadFile(location string, destPath string) (int64, error) {
	destFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	written, err := d.httpClient.Download(location, nil, destFile)
	closeErr := destFile.Close()
	if err != nil {
		_ = os.Remove(destPath)
		return 0, err
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return 0, fmt.Errorf("failed to close destination file: %w", closeErr)
	}
	return written, nil
}

// keepFile applies the configured extension allow-list. An empty list
// keeps everything.
func (d *Downloader) keepFile(fileName string) bool {
	if len(d.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, allowed := range d.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
