package domain

// Genre is a reference row. FilterName is the slug used by book list filters.
type Genre struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FilterName string `json:"filter_name"`
}

// Status is a reference row describing publication state ("ongoing", "completed").
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
