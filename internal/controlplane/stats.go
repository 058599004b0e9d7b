package controlplane

import (
	"net/http"
	"strconv"
)

type statsWire struct {
	Total       int64   `json:"total"`
	Count2xx    int64   `json:"count_2xx"`
	Count3xx    int64   `json:"count_3xx"`
	Count4xx    int64   `json:"count_4xx"`
	Count5xx    int64   `json:"count_5xx"`
	AvgDuration float64 `json:"avg_duration_ms"`
	MinDuration int64   `json:"min_duration_ms"`
	MaxDuration int64   `json:"max_duration_ms"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats := s.recorder.Stats()
	writeJSON(w, http.StatusOK, statsWire{
		Total: stats.Total, Count2xx: stats.Count2xx, Count3xx: stats.Count3xx,
		Count4xx: stats.Count4xx, Count5xx: stats.Count5xx,
		AvgDuration: stats.AvgDuration(), MinDuration: stats.MinDuration, MaxDuration: stats.MaxDuration,
	})
}

type analyticsWire struct {
	MethodHistogram map[string]int64       `json:"method_histogram"`
	StatusHistogram map[string]int64       `json:"status_histogram"`
	TopEndpoints    []endpointStatsWire    `json:"top_endpoints"`
	Timeline        []timelinePointWire    `json:"timeline"`
}

type endpointStatsWire struct {
	Path        string  `json:"path"`
	Count       int64   `json:"count"`
	AvgDuration float64 `json:"avg_duration_ms"`
	ErrorCount  int64   `json:"error_count"`
	TotalDuration int64 `json:"total_duration_ms"`
}

type timelinePointWire struct {
	TimestampUnixMS int64  `json:"timestamp_ms"`
	Method          string `json:"method"`
	Status          int    `json:"status"`
	DurationMS      int64  `json:"duration_ms"`
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	a := s.recorder.Analytics()

	statusHist := make(map[string]int64, len(a.StatusHistogram))
	for status, count := range a.StatusHistogram {
		statusHist[strconv.Itoa(status)] = count
	}

	top := make([]endpointStatsWire, len(a.TopEndpoints))
	for i, e := range a.TopEndpoints {
		top[i] = endpointStatsWire{
			Path: e.Path, Count: e.Count, AvgDuration: e.AvgDuration(),
			ErrorCount: e.ErrorCount, TotalDuration: e.TotalDuration,
		}
	}

	timeline := make([]timelinePointWire, len(a.Timeline))
	for i, p := range a.Timeline {
		timeline[i] = timelinePointWire{
			TimestampUnixMS: p.Timestamp.UnixMilli(), Method: p.Method, Status: p.Status, DurationMS: p.Duration,
		}
	}

	writeJSON(w, http.StatusOK, analyticsWire{
		MethodHistogram: a.MethodHistogram, StatusHistogram: statusHist, TopEndpoints: top, Timeline: timeline,
	})
}
