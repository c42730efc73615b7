package postgres

import (
	"fmt"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// appendListOpts appends time-range filters on col, the orderBy clause and
// LIMIT/OFFSET to query. The placeholders continue from len(args)+1.
func appendListOpts(query string, args []any, col string, opts domain.ListOpts, orderBy string) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", col, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", col, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY " + orderBy

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
