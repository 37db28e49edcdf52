package recommend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scentmatch/scentmatch/engine/domain"
)

// Store abstracts SELECT execution against the relational store.
type Store interface {
	Query(ctx context.Context, sql string, params []any) ([]map[string]any, error)
}

// Resolver fetches full perfume records for a set of match IDs.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up every match ID and returns the records re-sorted into the
// original similarity order. The store returns rows in its own order, so the
// ranking from the index would otherwise be lost. IDs missing from the store
// are tolerated and simply absent from the result.
func (r *Resolver) Resolve(ctx context.Context, ids []string) ([]domain.PerfumeRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := make([]any, len(ids))
	for i, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("resolve: match id %q is not numeric: %w", id, err)
		}
		params[i] = n
	}

	sql := "SELECT * FROM perfumes WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.store.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	records := make([]domain.PerfumeRecord, len(rows))
	for i, row := range rows {
		records[i] = domain.PerfumeRecord(row)
	}
	return sortByRank(records, ids), nil
}

// placeholders returns n comma-joined positional placeholders.
func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "?"
	}
	return strings.Join(ps, ",")
}

// sortByRank reorders records to follow the similarity order of ids.
// Records whose ID is not in ids keep their relative order at the end.
func sortByRank(records []domain.PerfumeRecord, ids []string) []domain.PerfumeRecord {
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}

	sorted := make([]domain.PerfumeRecord, 0, len(records))
	for _, id := range ids {
		for _, rec := range records {
			if rec.ID() == id {
				sorted = append(sorted, rec)
				break
			}
		}
	}
	for _, rec := range records {
		if _, ok := rank[rec.ID()]; !ok {
			sorted = append(sorted, rec)
		}
	}
	return sorted
}
