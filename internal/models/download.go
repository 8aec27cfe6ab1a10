package models

import "time"

// Download mirrors one SABnzbd queue or history item
type Download struct {
	ID    uint64 `boltholdKey:"ID"`
	NzoID string `boltholdUnique:"NzoID"` // SABnzbd NZO ID

	Name          string
	Status        Status `boltholdIndex:"Status"`
	Progress      float64 // 0-100
	Speed         float64 // MB/s, only meaningful while downloading
	SizeTotalMB   float64
	SizeLeftMB    float64
	TimeLeft      string
	QueuePosition *int // nil once out of the queue
	Category      string
	Priority      Priority
	FailureReason string

	// Media info matched from Radarr/Sonarr
	MediaTitle      string
	MediaType       MediaType
	Year            int
	SeasonNumber    *int // nil for movies
	EpisodeNumber   *int // nil for movies/season packs
	PosterURL       string
	SourceInstance  string // which Radarr/Sonarr instance produced the match
	PosterAttempted bool   `boltholdIndex:"PosterAttempted"`

	// Tracking
	ConsecutiveMisses int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time // set exactly once, on entering completed or failed
}
