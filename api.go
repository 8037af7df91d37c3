package hookgraph

import "time"

// DefaultUsageLimit is assumed when the backend reports no limit.
const DefaultUsageLimit = 100

// SaveRequest is the body of a graph create or update. A nil BumpVersion
// means true.
type SaveRequest struct {
	Name        string      `json:"name"`
	Definition  *Definition `json:"definition,omitempty"`
	Status      Status      `json:"status,omitempty"`
	BumpVersion *bool       `json:"bumpVersion,omitempty"`
}

// DeployState is the backend's view of what is currently deployed.
type DeployState struct {
	DeployFingerprint string `json:"deployFingerprint"`
}

// CompileResult is returned by a compile. Outputs lists the fields the
// deployed trigger emits; it is empty after a deprovision.
type CompileResult struct {
	Status            Status     `json:"status"`
	DeployFingerprint string     `json:"deployFingerprint"`
	CompiledAt        *time.Time `json:"compiledAt,omitempty"`
	Outputs           []Field    `json:"outputs"`
}

// StatusResponse is returned by pause and resume.
type StatusResponse struct {
	Status Status `json:"status"`
}

// Usage is the metered usage against the account limit.
type Usage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// OverLimit reports whether usage has reached the limit.
func (u Usage) OverLimit() bool {
	limit := u.Limit
	if limit <= 0 {
		limit = DefaultUsageLimit
	}
	return u.Used >= limit
}
