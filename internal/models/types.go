package models

// MediaType represents the type of media (movie or tv show)
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Status represents the download lifecycle state mirrored from SABnzbd
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// IsTerminal reports whether a download has finished, successfully or not.
// Terminal records are frozen: sync never updates them again and only the
// retention sweep removes them.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
