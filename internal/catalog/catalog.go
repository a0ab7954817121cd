package catalog

// Catalog defines the interface for conversion-run catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	UpsertDocument(d DocumentRow, body string, references []RefRow) error
	DeleteBySource(sourcePath string) error
	GetDocument(destPath string) (*DocumentRow, error)
	GetByID(id string) (*DocumentRow, error)
	GetByTitle(title string) (*DocumentRow, error)
	ListDocuments(limit, offset int, template, sort string) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Unresolved() ([]RefRow, error)
	RecordAssets(mapping map[string]string) error
	AssetMap() (map[string]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
