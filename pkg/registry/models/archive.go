package models

import "time"

// ImportAttempt is the most recent per-IXLAN import attempt: free-form
// structured diagnostics of what the last run saw, upserted on every run.
type ImportAttempt struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	IXLanID uint   `gorm:"column:ixlan_id;uniqueIndex;not null" json:"ixlan_id"`
	Info    string `gorm:"type:text" json:"info"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ImportAttempt.
func (ImportAttempt) TableName() string {
	return "import_attempts"
}

// ImportLog is one import event in the append-only archive: a saved run
// that applied at least one change under an IXLAN.
type ImportLog struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	IXLanID uint `gorm:"column:ixlan_id;index;not null" json:"ixlan_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	IXLan   *IXLan           `gorm:"foreignKey:IXLanID" json:"ixlan,omitempty"`
	Entries []ImportLogEntry `gorm:"foreignKey:ImportLogID" json:"entries,omitempty"`
}

// TableName returns the table name for ImportLog.
func (ImportLog) TableName() string {
	return "import_logs"
}

// ImportLogEntry records one applied change: the connection record it
// touched, the action, the reason, and the version snapshots immediately
// before and after the run. Entries are immutable once written.
type ImportLogEntry struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	ImportLogID uint `gorm:"index;not null" json:"import_log_id"`
	NetIXLanID  uint `gorm:"column:netixlan_id;index;not null" json:"netixlan_id"`

	Action Action `gorm:"size:16;not null" json:"action"`
	Reason string `gorm:"size:512" json:"reason"`

	VersionBeforeID *uint `json:"version_before_id,omitempty"`
	VersionAfterID  uint  `gorm:"not null" json:"version_after_id"`

	Log           *ImportLog       `gorm:"foreignKey:ImportLogID" json:"log,omitempty"`
	NetIXLan      *NetworkIXLan    `gorm:"foreignKey:NetIXLanID" json:"netixlan,omitempty"`
	VersionBefore *NetIXLanVersion `gorm:"foreignKey:VersionBeforeID" json:"version_before,omitempty"`
	VersionAfter  *NetIXLanVersion `gorm:"foreignKey:VersionAfterID" json:"version_after,omitempty"`
}

// TableName returns the table name for ImportLogEntry.
func (ImportLogEntry) TableName() string {
	return "import_log_entries"
}

// EmailLog records every notification send or gated skip.
type EmailLog struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Subject    string `gorm:"size:512" json:"subject"`
	Message    string `gorm:"type:text" json:"message"`
	Recipients string `gorm:"size:1024" json:"recipients"`

	NetworkID  *uint `gorm:"index" json:"network_id,omitempty"`
	ExchangeID *uint `gorm:"index" json:"exchange_id,omitempty"`

	// SentAt is set only when the message actually went out; a row
	// without it records a send suppressed by the notify flags.
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for EmailLog.
func (EmailLog) TableName() string {
	return "email_logs"
}

// Ticket records a ticket raised with the support system. A failed API
// call leaves the row behind with a "[FAILED]" subject prefix and the
// error appended to the body.
type Ticket struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Subject string `gorm:"size:512;index" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	// TicketID / TicketRef are the remote system's handle, set once the
	// create call succeeds (or inherited from a prior ticket with the
	// same subject).
	TicketID  *int64  `gorm:"index" json:"ticket_id,omitempty"`
	TicketRef *string `gorm:"size:64" json:"ticket_ref,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Ticket.
func (Ticket) TableName() string {
	return "tickets"
}
