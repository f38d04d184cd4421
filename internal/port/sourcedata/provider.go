// Package sourcedata defines the port to the data-assembly collaborator that
// supplies read-only source rows for a reporting month.
package sourcedata

import (
	"context"

	"github.com/rentledger/bureau/internal/domain/source"
)

// Provider fetches the assembled source rows whose payment due date falls in
// the given calendar month (YYYY-MM). The rows are a snapshot: a consent or
// profile change mid-run is not reflected until the next generation.
type Provider interface {
	FetchRows(ctx context.Context, month string) ([]source.Row, error)
}
