// Package errs defines common error variables used across the application.
package errs

import "errors"

// Startup errors. Any of these aborts the process before downloads begin.
var (
	// ErrConfig indicates that the configuration could not be resolved.
	ErrConfig = errors.New("config error")
	// ErrSource indicates that the input spreadsheet could not be read.
	ErrSource = errors.New("source error")
	// ErrSheetNotFound indicates that the requested sheet does not exist in the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrColumnNotFound indicates that the URL column is missing from the header row.
	ErrColumnNotFound = errors.New("column not found")
	// ErrUnsupportedInput indicates that the input file extension is not supported.
	ErrUnsupportedInput = errors.New("unsupported input format")
)

// Settings validation errors.
var (
	// ErrInvalidMode indicates that the download mode is neither audio nor video.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidResolution indicates that the resolution hint cannot be parsed.
	ErrInvalidResolution = errors.New("invalid resolution")
	// ErrInvalidSetting indicates that a numeric setting is out of range.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Per-item errors. These never abort the batch.
var (
	// ErrInvalidURL indicates that the URL failed normalization or validation.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrDownloadFailed indicates that the download failed.
	ErrDownloadFailed = errors.New("download failed")
	// ErrNoOutput indicates that the engine reported success but produced no file.
	ErrNoOutput = errors.New("operation completed without producing output")
)

// Dependency errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)
