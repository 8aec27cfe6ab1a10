package sabnzbd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackarr/trackarr/internal/models"
)

func TestParseQueueSlotsPositionOneIsDownloading(t *testing.T) {
	queue := queuePayload{
		Speed: "12.5 MB/s",
		Slots: []queueSlot{
			{NzoID: "nzo_1", Filename: "First.Release", Status: "Downloading", Percentage: "42.5", SizeMB: "1000", SizeLeftMB: "575", TimeLeft: "0:05:00", Category: "movies", Priority: "Normal"},
			{NzoID: "nzo_2", Filename: "Second.Release", Status: "Queued", Percentage: "0", SizeMB: "2000", SizeLeftMB: "2000", Category: "tv", Priority: "1"},
			{NzoID: "nzo_3", Filename: "Third.Release", Status: "Queued", Percentage: "0", SizeMB: "500", SizeLeftMB: "500", Category: "tv", Priority: "-1"},
		},
	}

	items := parseQueueSlots(queue)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, models.StatusDownloading, first.Status)
	assert.Equal(t, 42.5, first.Progress)
	assert.Equal(t, 12.5, first.Speed, "queue-wide speed belongs to the active item")
	assert.Equal(t, 1000.0, first.SizeTotalMB)
	assert.Equal(t, 575.0, first.SizeLeftMB)
	require.NotNil(t, first.QueuePosition)
	assert.Equal(t, 1, *first.QueuePosition)
	assert.Equal(t, models.PriorityNormal, first.Priority)

	second := items[1]
	assert.Equal(t, models.StatusQueued, second.Status)
	assert.Equal(t, 0.0, second.Speed)
	require.NotNil(t, second.QueuePosition)
	assert.Equal(t, 2, *second.QueuePosition)
	assert.Equal(t, models.PriorityHigh, second.Priority, "numeric priority codes are normalized")

	assert.Equal(t, models.PriorityLow, items[2].Priority)
}

func TestParseQueueSlotsPausedQueue(t *testing.T) {
	queue := queuePayload{
		Paused: true,
		Speed:  "0 B/s",
		Slots: []queueSlot{
			{NzoID: "nzo_1", Filename: "First.Release", Status: "Downloading", Percentage: "42.5"},
		},
	}

	items := parseQueueSlots(queue)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusQueued, items[0].Status, "a paused queue has no active download")
	assert.Equal(t, 0.0, items[0].Speed)
}

func TestParseQueueSlotsPausedSlot(t *testing.T) {
	queue := queuePayload{
		Speed: "5 MB/s",
		Slots: []queueSlot{
			{NzoID: "nzo_1", Filename: "Paused.Release", Status: "Paused", Percentage: "10"},
			{NzoID: "nzo_2", Filename: "Waiting.Release", Status: "Queued", Percentage: "0"},
		},
	}

	items := parseQueueSlots(queue)
	require.Len(t, items, 2)
	assert.Equal(t, models.StatusQueued, items[0].Status)
	assert.Equal(t, models.StatusQueued, items[1].Status)
}

func TestParseQueueSlotsNoSpeedBeforeProgress(t *testing.T) {
	queue := queuePayload{
		Speed: "8 MB/s",
		Slots: []queueSlot{
			{NzoID: "nzo_1", Filename: "Fresh.Release", Status: "Downloading", Percentage: "0"},
		},
	}

	items := parseQueueSlots(queue)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusDownloading, items[0].Status)
	assert.Equal(t, 0.0, items[0].Speed, "speed is not attributed before any bytes arrive")
}

func TestParseHistorySlots(t *testing.T) {
	completed := time.Now().Add(-time.Hour).Unix()
	history := historyPayload{
		Slots: []historySlot{
			{NzoID: "nzo_ok", Name: "Done.Release", Status: "Completed", Completed: completed, Bytes: 1073741824, Category: "movies"},
			{NzoID: "nzo_fail", Name: "Broken.Release", Status: "Completed", FailMessage: "Unpacking failed", Completed: completed},
			{NzoID: "nzo_failstatus", Name: "Other.Broken", Status: "Failed", Completed: completed},
		},
	}

	items := parseHistorySlots(history)
	require.Len(t, items, 3)

	ok := items[0]
	assert.Equal(t, models.StatusCompleted, ok.Status)
	assert.Equal(t, 100.0, ok.Progress)
	assert.Equal(t, 1024.0, ok.SizeTotalMB)
	require.NotNil(t, ok.CompletedAt)
	assert.Equal(t, completed, ok.CompletedAt.Unix())
	assert.Empty(t, ok.FailureReason)

	failMsg := items[1]
	assert.Equal(t, models.StatusFailed, failMsg.Status, "a fail message marks the slot failed regardless of status")
	assert.Equal(t, 0.0, failMsg.Progress)
	assert.Equal(t, "Unpacking failed", failMsg.FailureReason)

	assert.Equal(t, models.StatusFailed, items[2].Status)
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"12.3 MB/s", 12.3},
		{"500 KB/s", 500.0 / 1024},
		{"500 K", 500.0 / 1024},
		{"1.2 G", 1.2 * 1024},
		{"2 GB/s", 2048},
		{"512 B/s", 512.0 / (1024 * 1024)},
		{"0", 0.0},
		{"", 0.0},
		{"garbage", 0.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, ParseSpeed(tt.input), 0.0001, "input %q", tt.input)
	}
}
