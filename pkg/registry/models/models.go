package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Exchange{},
		&ExchangeContact{},
		&IXLan{},
		&IXLanPrefix{},
		&Network{},
		&NetworkContact{},
		&NetworkIXLan{},
		&NetIXLanVersion{},
		&MemberProposal{},
		&ImportAttempt{},
		&ImportLog{},
		&ImportLogEntry{},
		&EmailLog{},
		&Ticket{},
	}
}
