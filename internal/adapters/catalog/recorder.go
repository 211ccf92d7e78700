package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Recorder is a catalog collaborator that records every created collection
// name durably without ever looking at contents. It backs development and
// audit; a production deployment swaps in a client for the real catalog.
type Recorder struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

type record struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query,omitempty"`
	Members   []string  `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRecorder(storage ports.StoragePort, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		storage: storage,
		logger:  logger.With("component", "catalog"),
	}
}

func (r *Recorder) CreateTagged(_ context.Context, name, query string) error {
	return r.write(name, record{Name: name, Kind: "tagged", Query: query, CreatedAt: time.Now().UTC()})
}

func (r *Recorder) CreateChained(_ context.Context, name string, members []string) error {
	return r.write(name, record{Name: name, Kind: "chained", Members: members, CreatedAt: time.Now().UTC()})
}

func (r *Recorder) AppendChained(ctx context.Context, name string, members []string) error {
	value, version, exists, err := r.storage.Get(domain.CatalogKey(name))
	if err != nil {
		return err
	}
	if !exists {
		return r.CreateChained(ctx, name, members)
	}

	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return err
	}
	if rec.Kind != "chained" {
		return domain.NewConfigError("collection " + name + " is not chained")
	}
	rec.Members = append(rec.Members, members...)

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.storage.Put(domain.CatalogKey(name), payload, version)
}

// Collections lists recorded collection names with the given prefix.
func (r *Recorder) Collections(prefix string) ([]string, error) {
	items, err := r.storage.ListByPrefix(domain.CatalogPrefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range items {
		name := strings.TrimPrefix(item.Key, domain.CatalogPrefix)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Recorder) write(name string, rec record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, version, _, err := r.storage.Get(domain.CatalogKey(name))
	if err != nil {
		return err
	}
	if err := r.storage.Put(domain.CatalogKey(name), payload, version); err != nil {
		// Re-creating an existing collection is idempotent by name.
		if domain.IsVersionMismatch(err) {
			return nil
		}
		return err
	}
	r.logger.Debug("collection recorded", "name", name, "kind", rec.Kind)
	return nil
}
