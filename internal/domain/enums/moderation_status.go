package enums

type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusApproved ModerationStatus = "approved"
	// Rejected exists in the schema domain but is only ever set by a human
	// moderator out of band; no code path here writes it.
	ModerationStatusRejected ModerationStatus = "rejected"
)
