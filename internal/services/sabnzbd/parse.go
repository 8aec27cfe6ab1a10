package sabnzbd

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trackarr/trackarr/internal/models"
)

// Item is a standardized snapshot entry from the SABnzbd queue or history
type Item struct {
	NzoID         string
	Name          string
	Status        models.Status
	Progress      float64
	Speed         float64 // MB/s
	SizeTotalMB   float64
	SizeLeftMB    float64
	TimeLeft      string
	Category      string
	Priority      models.Priority
	QueuePosition *int
	CompletedAt   *time.Time
	FailureReason string
}

type queueResponse struct {
	Queue queuePayload `json:"queue"`
}

// SABnzbd reports most numeric slot fields as strings
type queuePayload struct {
	Paused bool        `json:"paused"`
	Speed  string      `json:"speed"`
	Slots  []queueSlot `json:"slots"`
}

type queueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	SizeMB     string `json:"mb"`
	SizeLeftMB string `json:"mbleft"`
	TimeLeft   string `json:"timeleft"`
	Category   string `json:"cat"`
	Priority   string `json:"priority"`
}

type historyResponse struct {
	History historyPayload `json:"history"`
}

type historyPayload struct {
	Slots []historySlot `json:"slots"`
}

type historySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	FailMessage string `json:"fail_message"`
	Completed   int64  `json:"completed"`
	Bytes       int64  `json:"bytes"`
	Category    string `json:"category"`
}

// parseQueueSlots converts queue slots to standardized items. SABnzbd only
// ever downloads one item at a time: position 1 is the active download
// (including post-processing states), everything behind it is queued. The
// per-slot speed field is unreliable, so the queue-wide speed is attributed
// to the active item only.
func parseQueueSlots(queue queuePayload) []Item {
	globalSpeed := ParseSpeed(queue.Speed)

	items := make([]Item, 0, len(queue.Slots))
	for i, slot := range queue.Slots {
		position := i + 1

		status := models.StatusQueued
		if position == 1 && !queue.Paused && !strings.EqualFold(slot.Status, "Paused") {
			status = models.StatusDownloading
		}

		progress := parseFloat(slot.Percentage)

		speed := 0.0
		if status == models.StatusDownloading && progress > 0 {
			speed = globalSpeed
		}

		pos := position
		items = append(items, Item{
			NzoID:         slot.NzoID,
			Name:          slot.Filename,
			Status:        status,
			Progress:      progress,
			Speed:         speed,
			SizeTotalMB:   parseFloat(slot.SizeMB),
			SizeLeftMB:    parseFloat(slot.SizeLeftMB),
			TimeLeft:      slot.TimeLeft,
			Category:      slot.Category,
			Priority:      models.NormalizePriority(slot.Priority),
			QueuePosition: &pos,
		})
	}

	return items
}

// parseHistorySlots converts history slots to standardized items. A slot is
// failed when it carries a fail message or a Failed status, completed otherwise.
func parseHistorySlots(history historyPayload) []Item {
	items := make([]Item, 0, len(history.Slots))
	for _, slot := range history.Slots {
		failed := slot.FailMessage != "" || strings.EqualFold(slot.Status, "Failed")

		status := models.StatusCompleted
		progress := 100.0
		if failed {
			status = models.StatusFailed
			progress = 0.0
		}

		var completedAt *time.Time
		if slot.Completed > 0 {
			t := time.Unix(slot.Completed, 0)
			completedAt = &t
		}

		items = append(items, Item{
			NzoID:         slot.NzoID,
			Name:          slot.Name,
			Status:        status,
			Progress:      progress,
			SizeTotalMB:   float64(slot.Bytes) / (1024 * 1024),
			Category:      slot.Category,
			CompletedAt:   completedAt,
			FailureReason: slot.FailMessage,
		})
	}

	return items
}

var speedRegex = regexp.MustCompile(`(?i)([\d.]+)\s*(KB/S|MB/S|GB/S|B/S|K|M|G)`)

// ParseSpeed parses a SABnzbd speed string to MB/s.
// Examples: "12.3 MB/s" -> 12.3, "500 K" -> 0.49, "1.2 G" -> 1228.8
func ParseSpeed(speed string) float64 {
	match := speedRegex.FindStringSubmatch(speed)
	if match == nil {
		return 0.0
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0.0
	}

	switch strings.ToUpper(match[2]) {
	case "KB/S", "K":
		return value / 1024
	case "MB/S", "M":
		return value
	case "GB/S", "G":
		return value * 1024
	case "B/S":
		return value / (1024 * 1024)
	}

	return 0.0
}

func parseFloat(s string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0.0
	}
	return value
}
