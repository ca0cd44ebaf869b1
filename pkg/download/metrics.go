package download

import "time"

// Metrics receives download outcomes. Implementations must be safe for
// concurrent use. The prometheus implementation lives in pkg/metrics.
type Metrics interface {
	// RecordSong records one song attempt. status is "success" or "failure";
	// mode is "single" or "album".
	RecordSong(mode, status string, bytes int64, duration time.Duration)

	// RecordAlbum records one album batch.
	RecordAlbum(status string, total, downloaded int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordSong(string, string, int64, time.Duration) {}
func (noopMetrics) RecordAlbum(string, int, int, time.Duration) {}
