package model

// ListQuery represents the GET /events query string.
type ListQuery struct {
	Page           int    `form:"page,default=1"`
	Limit          int    `form:"limit,default=100"`
	Method         string `form:"method"`
	Status         string `form:"status"`
	Phase          string `form:"phase"`
	Host           string `form:"host"`
	Search         string `form:"search"`
	StatusCategory string `form:"statusCategory"`
	TimeRange      string `form:"timeRange"`
}

// EventFilter is the repository-level filter derived from a ListQuery.
// Zero values mean "no constraint".
type EventFilter struct {
	Method         string
	Phase          string
	Host           string
	Status         *int
	StatusCategory string
	TimeRange      string
	Search         string
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Events     []*WireEvent `json:"events"`
	Pagination Pagination   `json:"pagination"`
}

type IngestResult struct {
	ID      int64 `json:"id"`
	Success bool  `json:"success"`
}
