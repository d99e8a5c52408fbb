package metrics

import "sync/atomic"

// ImportMetrics counts outcomes within one import batch.
type ImportMetrics struct {
	InsertedCount   atomic.Int32
	UpdatedCount    atomic.Int32
	SkippedCount    atomic.Int32
	FailedCount     atomic.Int32
	RejectedCount   atomic.Int32
	SideloadedCount atomic.Int32
}

func (m *ImportMetrics) Record(action string) {
	switch action {
	case "inserted":
		m.InsertedCount.Add(1)
	case "updated":
		m.UpdatedCount.Add(1)
	case "skipped":
		m.SkippedCount.Add(1)
	case "failed":
		m.FailedCount.Add(1)
	case "rejected":
		m.RejectedCount.Add(1)
	}
	RecordImportedProduct(action)
}

type ImportSummary struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Rejected   int `json:"rejected"`
	Sideloaded int `json:"sideloaded"`
}

func (m *ImportMetrics) Summary() ImportSummary {
	return ImportSummary{
		Inserted:   int(m.InsertedCount.Load()),
		Updated:    int(m.UpdatedCount.Load()),
		Skipped:    int(m.SkippedCount.Load()),
		Failed:     int(m.FailedCount.Load()),
		Rejected:   int(m.RejectedCount.Load()),
		Sideloaded: int(m.SideloadedCount.Load()),
	}
}
