package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector" (the schema alias)
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search.
// Distance is the raw __vector_score: smaller means closer for every metric.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
