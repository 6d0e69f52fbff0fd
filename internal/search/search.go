package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Snippet    string `json:"snippet"`
	OwnerID    string `json:"ownerId"`
	TeamID     string `json:"teamId"`
	Kind       string `json:"kind"`
	Completed  bool   `json:"completed"`
}

// Query describes a search request.
type Query struct {
	Text     string
	TeamID   string
	OwnerID  string // empty = all owners
	OnlyOpen bool
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// EntityRecord is the data we index for an entity.
type EntityRecord struct {
	ID          string `json:"id"`
	ExternalID  string `json:"externalId"`
	TeamID      string `json:"teamId"`
	OwnerID     string `json:"ownerId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
}
