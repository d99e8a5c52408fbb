package importer

import (
	"pimsync_api/internal/syncerr"
	"pimsync_api/metrics"
)

type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
	ActionRejected Action = "rejected"
	ActionFailed   Action = "failed"
)

// ProductStatus is the outcome for one remote product id. Notes collect the
// non fatal problems met while attaching assets, terms and categories.
type ProductStatus struct {
	RemoteID string   `json:"remote_id"`
	RecordID int64    `json:"record_id,omitempty"`
	Action   Action   `json:"action"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

func (s ProductStatus) withError(action Action, err error) ProductStatus {
	s.Action = action
	s.Code = syncerr.CodeOf(err)
	s.Message = err.Error()
	return s
}

type BatchResult struct {
	RunID    string                `json:"run_id"`
	Statuses []ProductStatus       `json:"statuses"`
	Summary  metrics.ImportSummary `json:"summary"`
}

type SyncResult struct {
	Import     *BatchResult         `json:"import"`
	Categories []CategoryLinkStatus `json:"categories"`
}
