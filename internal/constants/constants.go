// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Upload limits
const (
	// MaxUploadSize is the maximum size of a multipart reference image upload
	MaxUploadSize = 32 << 20

	// MaxAudioSize is the maximum size of a voice query; the transcription API rejects larger files
	MaxAudioSize = 25 << 20
)

// HTTP server timeouts
const (
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = 5 * time.Minute // language model calls can be slow
	IdleTimeout     = 60 * time.Second
	RequestTimeout  = 5 * time.Minute
	ShutdownTimeout = 10 * time.Second
)

// ReferenceImageExtensions lists the files "album build-dir" picks up
var ReferenceImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif", ".tif", ".tiff"}
