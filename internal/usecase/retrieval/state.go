package retrieval

// State is the ingestion state of the document.
type State int

// Ingestion states.
const (
	NotIngested State = iota
	Ingesting
	Ingested
)

func (s State) String() string {
	switch s {
	case Ingesting:
		return "ingesting"
	case Ingested:
		return "ingested"
	default:
		return "not_ingested"
	}
}

// IngestResult counts what happened to each chunk of a document.
type IngestResult struct {
	Chunks   int // chunks produced by the chunker
	Created  int // newly stored
	Existing int // already stored before this run
	Failed   int // upsert failed
}

// Stored is the number of chunks durably stored for the document.
func (r IngestResult) Stored() int { return r.Created + r.Existing }
