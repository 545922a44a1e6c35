package session

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// progressReader counts the bytes read from a file being loaded and logs a
// progress line at most once per interval
type progressReader struct {
	r           io.Reader
	log         *zap.Logger
	description string
	totalBytes  int64
	interval    time.Duration

	startTime time.Time
	lastLog   time.Time
	read      atomic.Int64
}

func newProgressReader(r io.Reader, totalBytes int64, description string, log *zap.Logger) *progressReader {
	now := time.Now()
	return &progressReader{
		r:           r,
		log:         log,
		description: description,
		totalBytes:  totalBytes,
		interval:    5 * time.Second,
		startTime:   now,
		lastLog:     now,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	read := p.read.Add(int64(n))
	if now := time.Now(); now.Sub(p.lastLog) >= p.interval {
		p.lastLog = now
		pr := p.Calculate(read)
		p.log.Info("Loading progress",
			zap.String("file", p.description),
			zap.String("read", FormatBytes(read)),
			zap.String("total", FormatBytes(p.totalBytes)),
			zap.String("percent", fmt.Sprintf("%.1f%%", pr.Percentage)),
			zap.String("eta", FormatETA(pr.ETA)))
	}
	return n, err
}

// Progress holds current progress information
type Progress struct {
	Bytes      int64
	Total      int64
	Percentage float64
	Elapsed    time.Duration
	ETA        time.Duration
}

// Calculate returns progress for bytesProcessed of the file
func (p *progressReader) Calculate(bytesProcessed int64) Progress {
	elapsed := time.Since(p.startTime)

	var percentage float64
	var eta time.Duration
	if p.totalBytes > 0 && bytesProcessed > 0 {
		percentage = float64(bytesProcessed) / float64(p.totalBytes) * 100
		if percentage < 100 && elapsed > 0 {
			bytesPerSecond := float64(bytesProcessed) / elapsed.Seconds()
			remaining := p.totalBytes - bytesProcessed
			eta = time.Duration(float64(remaining)/bytesPerSecond) * time.Second
		}
	}

	return Progress{
		Bytes:      bytesProcessed,
		Total:      p.totalBytes,
		Percentage: percentage,
		Elapsed:    elapsed.Round(time.Second),
		ETA:        eta.Round(time.Second),
	}
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
