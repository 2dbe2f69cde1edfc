package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Query builds the filter part of a REST table request
type Query struct {
	values url.Values
}

// From starts a query selecting columns (e.g. "*, users(*)")
func From(columns string) *Query {
	q := &Query{values: url.Values{}}
	if columns != "" {
		q.values.Set("select", columns)
	}
	return q
}

// Where starts a query without a select list
func Where() *Query {
	return From("")
}

func (q *Query) filter(column, op, value string) *Query {
	q.values.Add(column, op+"."+value)
	return q
}

// Eq matches rows where column equals value
func (q *Query) Eq(column, value string) *Query { return q.filter(column, "eq", value) }

// Neq matches rows where column differs from value
func (q *Query) Neq(column, value string) *Query { return q.filter(column, "neq", value) }

// Lt matches rows where column is less than value
func (q *Query) Lt(column, value string) *Query { return q.filter(column, "lt", value) }

// Lte matches rows where column is at most value
func (q *Query) Lte(column, value string) *Query { return q.filter(column, "lte", value) }

// Gte matches rows where column is at least value
func (q *Query) Gte(column, value string) *Query { return q.filter(column, "gte", value) }

// Or adds a disjunction, e.g. "owner_id.eq.1,status.eq.active"
func (q *Query) Or(expr string) *Query {
	q.values.Add("or", "("+expr+")")
	return q
}

// Order sorts the result by column
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.values.Add("order", column+"."+dir)
	return q
}

// Limit caps the number of returned rows
func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", strconv.Itoa(n))
	return q
}

// Values returns the encoded query parameters
func (q *Query) Values() url.Values {
	if q == nil {
		return url.Values{}
	}
	out := url.Values{}
	for k, v := range q.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

const (
	preferReturn = "return=representation"
	acceptSingle = "application/vnd.pgrst.object+json"
)

func tablePath(table string) string {
	return "/rest/v1/" + table
}

// Insert adds row to table and decodes the stored row into out
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	return c.InsertSelect(ctx, table, "", row, out)
}

// InsertSelect is Insert with a select list applied to the returned row,
// so joined records come back with it
func (c *Client) InsertSelect(ctx context.Context, table, columns string, row any, out any) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(table),
		query:  From(columns).Values(),
		body:   row,
		headers: map[string]string{
			"Prefer": preferReturn,
			"Accept": acceptSingle,
		},
	}, out)
}

// Select decodes all rows matching q into out, which must be a slice pointer
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  q.Values(),
	}, out)
}

// SelectOne decodes the single row matching q into out. No match yields a
// KindNotFound error.
func (c *Client) SelectOne(ctx context.Context, table string, q *Query, out any) error {
	return c.do(ctx, request{
		method:  http.MethodGet,
		path:    tablePath(table),
		query:   q.Values(),
		headers: map[string]string{"Accept": acceptSingle},
	}, out)
}

// Update applies patch to the rows matching q. When out is non-nil the single
// updated row is decoded into it.
func (c *Client) Update(ctx context.Context, table string, q *Query, patch any, out any) error {
	headers := map[string]string{"Prefer": preferReturn}
	if out != nil {
		headers["Accept"] = acceptSingle
	}
	return c.do(ctx, request{
		method:  http.MethodPatch,
		path:    tablePath(table),
		query:   q.Values(),
		body:    patch,
		headers: headers,
	}, out)
}

// Delete removes the rows matching q. An empty filter is refused.
func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	vals := q.Values()
	vals.Del("select")
	if len(vals) == 0 {
		return NewError(KindValidation, fmt.Sprintf("refusing to delete from %s without a filter", table))
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   tablePath(table),
		query:  vals,
	}, nil)
}
