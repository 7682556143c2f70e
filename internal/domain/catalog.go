package domain

const UnknownLabel = "Unknown"

type SearchRequest struct {
	Resource ResourceKind
	Term     string
	Page     int
	Limit    int
}

type SearchListItem struct {
	ID       string       `json:"id"`
	Kind     ResourceKind `json:"type"`
	Label    string       `json:"label"`
	Subtitle *string      `json:"subtitle"`
}

type SearchMeta struct {
	Page           int          `json:"page"`
	PerPage        int          `json:"perPage"`
	Total          int          `json:"total"`
	TotalPages     *int         `json:"totalPages"`
	Resource       ResourceKind `json:"resource"`
	Query          *string      `json:"query"`
	HasNext        bool         `json:"hasNext"`
	HasPrevious    bool         `json:"hasPrevious"`
	ResponseTimeMs float64      `json:"responseTimeMs"`
}

type SearchResponse struct {
	Data []SearchListItem `json:"data"`
	Meta SearchMeta       `json:"meta"`
}

type MovieRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CharacterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PersonDetail struct {
	ID        string
	Name      string
	BirthYear string
	Gender    string
	EyeColor  string
	HairColor string
	Height    string
	Mass      string
	Movies    []MovieRef
}

type FilmDetail struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	Characters []CharacterRef `json:"characters"`
}
