package tree

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dialect hides the SQL differences between the benchmarked engines.
// Model queries are written with '?' placeholders.
type Dialect interface {
	Name() string
	// Rebind converts '?' placeholders to the engine's style.
	Rebind(query string) string
	// PrimaryKey is the column definition of an auto-increment id.
	PrimaryKey() string
	// BinaryVarchar is a VARCHAR column type that compares byte-wise.
	BinaryVarchar(size int) string
	// ConcatParam concatenates a bound string parameter with expr.
	ConcatParam(expr string) string
	// InsertID runs an INSERT and returns the generated id.
	InsertID(ctx context.Context, ex Executor, query string, args ...any) (NodeID, error)
}

// RebindDollar rewrites '?' placeholders as $1, $2, ...
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// LastInsertID is InsertID for drivers that report sql.Result.LastInsertId.
func LastInsertID(ctx context.Context, ex Executor, query string, args ...any) (NodeID, error) {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "insert")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return id, nil
}

// Placeholders returns "?, ?, ..." with n entries.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
