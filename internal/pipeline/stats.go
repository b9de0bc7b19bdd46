package pipeline

import "github.com/LordBoos/smartclip/internal/detect"

// statsCounters are the raw pipeline counters. Guarded by Coordinator.mu.
type statsCounters struct {
	framesIngested int64
	dropped        map[detect.Kind]int64
	detections     map[detect.Kind]int64
	accepted       int64
	rejected       int64
	suppressed     int64
}

// Stats is a point-in-time view of pipeline activity, served on the stats
// endpoint.
type Stats struct {
	// FramesIngested counts frames handed to Ingest.
	FramesIngested int64 `json:"frames_ingested"`

	// DroppedFrames counts frames discarded per classifier because its
	// queue was full.
	DroppedFrames map[detect.Kind]int64 `json:"dropped_frames"`

	// Detections counts raw detector firings per classifier.
	Detections map[detect.Kind]int64 `json:"detections"`

	// Accepted and Rejected count quality-scorer outcomes; Suppressed
	// counts detections swallowed by the cross-detector cooldown.
	Accepted   int64 `json:"accepted"`
	Rejected   int64 `json:"rejected"`
	Suppressed int64 `json:"suppressed"`
}

// Stats returns a snapshot of the pipeline counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		FramesIngested: c.stats.framesIngested,
		DroppedFrames:  make(map[detect.Kind]int64, len(c.stats.dropped)),
		Detections:     make(map[detect.Kind]int64, len(c.stats.detections)),
		Accepted:       c.stats.accepted,
		Rejected:       c.stats.rejected,
		Suppressed:     c.stats.suppressed,
	}
	for k, v := range c.stats.dropped {
		s.DroppedFrames[k] = v
	}
	for k, v := range c.stats.detections {
		s.Detections[k] = v
	}
	return s
}
