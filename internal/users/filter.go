package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/accountd/accountd/internal/shared"
)

// Filter is a composable predicate over the users table. Predicates use ?
// placeholders internally and are rewritten to positional arguments when
// rendered into a query. The zero value matches everything.
//
// Predicates given empty criteria collapse to match-everything so callers can
// compose straight from optional request parameters.
type Filter struct {
	sql  string
	args []any
	err  error
}

// MatchAll returns a filter that matches every row.
func MatchAll() Filter { return Filter{} }

// MatchNone returns a filter that matches no rows.
func MatchNone() Filter { return Filter{sql: "FALSE"} }

// Err reports a construction error, such as an inverted date range.
func (f Filter) Err() error { return f.err }

// And combines filters so every one must match. Empty filters are skipped.
func And(filters ...Filter) Filter {
	return combine("AND", filters)
}

// Or combines filters so at least one must match. Empty filters are skipped.
func Or(filters ...Filter) Filter {
	return combine("OR", filters)
}

func combine(op string, filters []Filter) Filter {
	var parts []string
	var args []any
	for _, f := range filters {
		if f.err != nil {
			return Filter{err: f.err}
		}
		if f.sql == "" {
			continue
		}
		parts = append(parts, "("+f.sql+")")
		args = append(args, f.args...)
	}
	if len(parts) == 0 {
		return Filter{}
	}
	if len(parts) == 1 {
		// Drop the wrapping parens added above.
		return Filter{sql: parts[0][1 : len(parts[0])-1], args: args}
	}
	return Filter{sql: strings.Join(parts, " "+op+" "), args: args}
}

// HasEmail matches the exact email value. Exact matches are case sensitive,
// as stored.
func HasEmail(email string) Filter {
	return exact("email", email)
}

// EmailContains matches emails containing the substring, case insensitively.
func EmailContains(substring string) Filter {
	return contains("email", substring)
}

// HasUsername matches the exact username value.
func HasUsername(username string) Filter {
	return exact("username", username)
}

// UsernameContains matches usernames containing the substring, case
// insensitively.
func UsernameContains(substring string) Filter {
	return contains("username", substring)
}

// HasFirstName matches the exact first name.
func HasFirstName(name string) Filter {
	return exact("first_name", name)
}

// FirstNameContains matches first names containing the substring.
func FirstNameContains(substring string) Filter {
	return contains("first_name", substring)
}

// HasLastName matches the exact last name.
func HasLastName(name string) Filter {
	return exact("last_name", name)
}

// LastNameContains matches last names containing the substring.
func LastNameContains(substring string) Filter {
	return contains("last_name", substring)
}

// NameContains matches users whose first or last name contains the substring.
func NameContains(substring string) Filter {
	if substring == "" {
		return MatchAll()
	}
	return Or(FirstNameContains(substring), LastNameContains(substring))
}

// SearchAllFields matches users whose email, username, first name or last
// name contains the term.
func SearchAllFields(term string) Filter {
	if term == "" {
		return MatchAll()
	}
	return Or(
		EmailContains(term),
		UsernameContains(term),
		FirstNameContains(term),
		LastNameContains(term),
	)
}

// ActiveEquals matches rows with the given active status.
func ActiveEquals(active bool) Filter {
	return Filter{sql: "is_active = ?", args: []any{active}}
}

// ActiveOnly matches only active rows.
func ActiveOnly() Filter { return ActiveEquals(true) }

// InactiveOnly matches only soft-deleted rows.
func InactiveOnly() Filter { return ActiveEquals(false) }

// IDIn matches rows whose id is in the set. An empty set matches everything.
func IDIn(ids []int64) Filter {
	if len(ids) == 0 {
		return MatchAll()
	}
	return Filter{sql: "id = ANY(?)", args: []any{ids}}
}

// IDNotIn matches rows whose id is outside the set.
func IDNotIn(ids []int64) Filter {
	if len(ids) == 0 {
		return MatchAll()
	}
	return Filter{sql: "id <> ALL(?)", args: []any{ids}}
}

// CreatedAfter matches rows created at or after the instant.
func CreatedAfter(at time.Time) Filter {
	return Filter{sql: "created_at >= ?", args: []any{at}}
}

// CreatedBefore matches rows created at or before the instant.
func CreatedBefore(at time.Time) Filter {
	return Filter{sql: "created_at <= ?", args: []any{at}}
}

// CreatedBetween matches rows created inside the inclusive range. An inverted
// range is a caller error, not an empty result.
func CreatedBetween(start, end time.Time) Filter {
	return between("created_at", start, end)
}

// UpdatedBetween matches rows last updated inside the inclusive range.
func UpdatedBetween(start, end time.Time) Filter {
	return between("updated_at", start, end)
}

// LastLoginAfter matches rows that have logged in at or after the instant.
func LastLoginAfter(at time.Time) Filter {
	return Filter{sql: "last_login_at IS NOT NULL AND last_login_at >= ?", args: []any{at}}
}

// LastLoginBetween matches rows whose last login falls inside the inclusive
// range.
func LastLoginBetween(start, end time.Time) Filter {
	f := between("last_login_at", start, end)
	if f.err != nil || f.sql == "" {
		return f
	}
	return Filter{sql: "last_login_at IS NOT NULL AND " + f.sql, args: f.args}
}

// NeverLoggedIn matches rows with no recorded login.
func NeverLoggedIn() Filter {
	return Filter{sql: "last_login_at IS NULL"}
}

// HasLoggedIn matches rows with at least one recorded login.
func HasLoggedIn() Filter {
	return Filter{sql: "last_login_at IS NOT NULL"}
}

func exact(column, value string) Filter {
	if value == "" {
		return MatchAll()
	}
	return Filter{sql: column + " = ?", args: []any{value}}
}

func contains(column, substring string) Filter {
	if substring == "" {
		return MatchAll()
	}
	return Filter{sql: column + " ILIKE ?", args: []any{"%" + substring + "%"}}
}

func between(column string, start, end time.Time) Filter {
	if end.Before(start) {
		return Filter{err: shared.NewValidationError(column, "range start must not be after range end")}
	}
	return Filter{
		sql:  column + " >= ? AND " + column + " <= ?",
		args: []any{start, end},
	}
}

// render produces a WHERE fragment with positional placeholders starting at
// next, plus the bound arguments. An empty filter renders to an empty string.
func (f Filter) render(next int) (string, []any, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	if f.sql == "" {
		return "", nil, nil
	}
	var sb strings.Builder
	n := next
	for _, ch := range f.sql {
		if ch == '?' {
			fmt.Fprintf(&sb, "$%d", n)
			n++
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String(), f.args, nil
}
