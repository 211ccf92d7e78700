package ports

import "context"

// Catalog is the data-catalog collaborator. The engine only names
// collections; it never inspects their contents.
type Catalog interface {
	CreateTagged(ctx context.Context, name, query string) error
	CreateChained(ctx context.Context, name string, members []string) error
	AppendChained(ctx context.Context, name string, members []string) error
}
