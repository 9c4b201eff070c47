package store

// Stores is the top-level container for all storage gateways.
type Stores struct {
	Tasks   TaskStore
	History HistoryStore
	Costs   CostStore
}
