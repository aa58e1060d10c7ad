package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// LoadPostgres reads table and column metadata for the public schema.
// Row counts come from planner estimates (pg_class.reltuples), which is
// cheap and accurate enough for prompt context.
func LoadPostgres(ctx context.Context, db *sql.DB) ([]Table, error) {
	var (
		mu        sync.Mutex
		columns   = make(map[string][]Column)
		order     []string
		estimates = make(map[string]int64)
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		const q = `
			SELECT table_name, column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = 'public'
			ORDER BY table_name, ordinal_position
		`
		rows, err := db.QueryContext(gctx, q)
		if err != nil {
			return fmt.Errorf("load columns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var table, name, typ, nullable string
			if err := rows.Scan(&table, &name, &typ, &nullable); err != nil {
				return fmt.Errorf("scan column: %w", err)
			}
			mu.Lock()
			if _, seen := columns[table]; !seen {
				order = append(order, table)
			}
			columns[table] = append(columns[table], Column{
				Name:     name,
				Type:     typ,
				Nullable: nullable == "YES",
			})
			mu.Unlock()
		}
		return rows.Err()
	})

	g.Go(func() error {
		const q = `
			SELECT c.relname, GREATEST(c.reltuples, 0)::bigint
			FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = 'public' AND c.relkind = 'r'
		`
		rows, err := db.QueryContext(gctx, q)
		if err != nil {
			return fmt.Errorf("load row estimates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			var est int64
			if err := rows.Scan(&name, &est); err != nil {
				return fmt.Errorf("scan estimate: %w", err)
			}
			mu.Lock()
			estimates[name] = est
			mu.Unlock()
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(order)
	tables := make([]Table, 0, len(order))
	for _, name := range order {
		tables = append(tables, Table{
			Name:        name,
			Columns:     columns[name],
			RowEstimate: estimates[name],
		})
	}

	log.Info().Int("tables", len(tables)).Msg("Catalog loaded")
	return tables, nil
}
