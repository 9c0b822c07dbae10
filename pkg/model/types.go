package model

import "time"

// OrgUsageSnapshot captures one organization's memory consumption at the
// moment a pass evaluated it. Snapshots are built fresh every pass and never
// persisted.
type OrgUsageSnapshot struct {
	OrgID         string       `json:"org_id"`
	OrgName       string       `json:"org_name"`
	MemoryLimitMB int          `json:"memory_limit_mb"`
	MemoryUsedMB  int          `json:"memory_used_mb"`
	PercentUsed   int          `json:"percent_used"`
	Spaces        []SpaceUsage `json:"spaces"`
}

// SpaceUsage is the per-space breakdown inside an organization. Consumed
// memory is recomputed from the space's applications (instances x memory);
// it feeds the notification body only, never the alert decision.
type SpaceUsage struct {
	SpaceID       string `json:"space_id"`
	SpaceName     string `json:"space_name"`
	ConsumedMB    int    `json:"consumed_mb"`
	AppCount      int    `json:"app_count"`
	InstanceCount int    `json:"instance_count"`
}

// Recipient is a resolved organization manager. Email may be empty when the
// directory has no address on file; such recipients are never delivered to.
type Recipient struct {
	UserID     string `json:"user_id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email,omitempty"`
}

// AlertDecision is the per-organization outcome of one evaluation pass.
type AlertDecision struct {
	OrgID       string      `json:"org_id"`
	OrgName     string      `json:"org_name"`
	PercentUsed int         `json:"percent_used"`
	Eligible    bool        `json:"eligible"`
	Recipients  []Recipient `json:"recipients,omitempty"`
}

// ThrottleRecord is the persisted last-sent marker for one recipient email.
// Records are created on first send and updated on every subsequent send;
// they are never deleted automatically.
type ThrottleRecord struct {
	ID       string    `json:"id" db:"id"`
	Email    string    `json:"email" db:"email"`
	LastSent time.Time `json:"last_sent" db:"last_sent"`
}

// PassStats summarizes the most recent evaluation pass for operators.
type PassStats struct {
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
	OrgsEvaluated  int       `json:"orgs_evaluated"`
	OrgsSkipped    int       `json:"orgs_skipped"`
	OrgsAlerted    int       `json:"orgs_alerted"`
	SendsAttempted int       `json:"sends_attempted"`
	SendsSucceeded int       `json:"sends_succeeded"`
	SendsThrottled int       `json:"sends_throttled"`
	SendFailures   int       `json:"send_failures"`
}
