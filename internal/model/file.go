package model

import (
	"context"
	"encoding/json"
	"io"
)

// FileEntry is one stored file as returned by the list endpoint.
type FileEntry struct {
	ID               Scalar `json:"id"`
	FileName         string `json:"fileName"`
	MimeType         string `json:"mimeType"`
	OriginalSize     int64  `json:"originalSize"`
	DNASize          int64  `json:"dnaSize"`
	RealDNASize      int64  `json:"realDnaSize"`
	UploadedAt       Scalar `json:"uploadedAt"`
	TotalChunks      int    `json:"totalChunks"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	CompressionRatio Scalar `json:"compressionRatio"`
}

// FileQuery carries the list parameters forwarded to the server. Zero values are omitted.
type FileQuery struct {
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Pagination is the page window echoed by the list endpoint.
type Pagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalFiles      int  `json:"totalFiles"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Sorting is the sort order echoed by the list endpoint.
type Sorting struct {
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// FileList is a page of files.
type FileList struct {
	Pagination Pagination  `json:"pagination"`
	Sorting    Sorting     `json:"sorting"`
	Files      []FileEntry `json:"files"`
}

// SizeTotals holds byte counts for each size category.
type SizeTotals struct {
	Original int64 `json:"original"`
	DNA      int64 `json:"dna"`
	RealDNA  int64 `json:"realDna"`
}

// SizeUnits holds the human-readable rendering of SizeTotals as sent by the server.
type SizeUnits struct {
	Original string `json:"original"`
	DNA      string `json:"dna"`
	RealDNA  string `json:"realDna"`
}

// Overhead holds storage overhead percentages relative to the original size.
type Overhead struct {
	DNAPercent     float64 `json:"dnaPercent"`
	RealDNAPercent float64 `json:"realDnaPercent"`
}

// Stats are the aggregate statistics over all of the user's files.
type Stats struct {
	TotalFiles  int        `json:"totalFiles"`
	TotalChunks int        `json:"totalChunks"`
	Bytes       SizeTotals `json:"bytes"`
	Formatted   SizeUnits  `json:"formatted"`
	Overhead    Overhead   `json:"overhead"`
}

// Encoding describes the base-encoding parameters used for a file.
type Encoding struct {
	BitsPerBase         float64 `json:"bitsPerBase"`
	BasesPerEncodedByte float64 `json:"basesPerEncodedByte"`
}

// FileDetail is the full metadata of a single file.
type FileDetail struct {
	FileEntry
	Sizes    SizeTotals `json:"sizes"`
	Overhead Overhead   `json:"overhead"`
	Encoding Encoding   `json:"encoding"`
}

// FileUploaded is the payload of the fileUploaded event.
type FileUploaded struct {
	FileName string
	Response json.RawMessage
}

// Storage is an object store a downloaded file can be exported to.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
