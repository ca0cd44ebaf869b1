package metrics

import (
	"time"

	"github.com/marmos91/tunecache/pkg/download"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// downloadMetrics is the Prometheus implementation of download.Metrics.
type downloadMetrics struct {
	songs         *prometheus.CounterVec
	songBytes     *prometheus.CounterVec
	songDuration  *prometheus.HistogramVec
	albums        *prometheus.CounterVec
	albumDuration prometheus.Histogram
	albumSongs    *prometheus.CounterVec
}

// NewDownloadMetrics creates Prometheus-backed download metrics.
//
// Returns nil when metrics are disabled; download.WithMetrics(nil) keeps the
// orchestrator's no-op sink.
func NewDownloadMetrics() download.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newDownloadMetrics(GetRegistry())
}

func newDownloadMetrics(reg prometheus.Registerer) *downloadMetrics {
	return &downloadMetrics{
		songs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "song_downloads_total",
				Help:      "Song download attempts by mode (single, album) and status",
			},
			[]string{"mode", "status"},
		),
		songBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "song_download_bytes_total",
				Help:      "Bytes of audio stored by successful song downloads",
			},
			[]string{"mode"},
		),
		songDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "song_download_duration_seconds",
				Help:      "Duration of song downloads, fetch and store included",
				Buckets: []float64{
					0.1, // 100ms
					0.5, // 500ms
					1,   // 1s
					5,   // 5s
					15,  // 15s
					60,  // 1m
					300, // 5m
				},
			},
			[]string{"mode"},
		),
		albums: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "album_downloads_total",
				Help:      "Album batches by outcome (success, partial, failure, cancelled)",
			},
			[]string{"status"},
		),
		albumDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "album_download_duration_seconds",
				Help:      "Duration of album batches",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
			},
		),
		albumSongs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "album_songs_total",
				Help:      "Songs requested by album batches, split by whether they were stored",
			},
			[]string{"result"},
		),
	}
}

func (m *downloadMetrics) RecordSong(mode, status string, bytes int64, duration time.Duration) {
	m.songs.WithLabelValues(mode, status).Inc()
	m.songDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if status == "success" {
		m.songBytes.WithLabelValues(mode).Add(float64(bytes))
	}
}

func (m *downloadMetrics) RecordAlbum(status string, total, downloaded int, duration time.Duration) {
	m.albums.WithLabelValues(status).Inc()
	m.albumDuration.Observe(duration.Seconds())
	m.albumSongs.WithLabelValues("stored").Add(float64(downloaded))
	if missing := total - downloaded; missing > 0 {
		m.albumSongs.WithLabelValues("missing").Add(float64(missing))
	}
}
