package model

// Preferences are per-user UI settings persisted in the state database.
// Filter values are kept as their display strings ("ALL", "HIGH", "PENDING").
type Preferences struct {
	RememberEmail   string
	FilterPriority  string
	FilterStatus    string
	GroupByPriority bool
}
