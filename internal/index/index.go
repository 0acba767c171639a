package index

import "github.com/starford/zap/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, text string, links []string, tasks []models.Task) error
	DeleteNote(id string) error
	GetNote(id string) (*NoteRow, error)
	GetChecksum(id string) (string, error)
	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() (models.Graph, error)
	Backlinks(target string) ([]NoteRow, error)
	Tags() ([]models.TagCount, error)
	Tasks() ([]models.Task, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
