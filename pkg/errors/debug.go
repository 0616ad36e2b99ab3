package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain for structured logs. DB fields are filled
// from whichever driver error sits in the chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	DBCode       string `json:"db_code,omitempty"`
	DBConstraint string `json:"db_constraint,omitempty"`
	DBTable      string `json:"db_table,omitempty"`
	DBColumn     string `json:"db_column,omitempty"`
	DBDetail     string `json:"db_detail,omitempty"`
	DBMessage    string `json:"db_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pgxErr):
		d.DBCode, d.DBConstraint = pgxErr.Code, pgxErr.ConstraintName
		d.DBTable, d.DBColumn = pgxErr.TableName, pgxErr.ColumnName
		d.DBDetail, d.DBMessage = pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.DBCode, d.DBConstraint = string(pqErr.Code), pqErr.Constraint
		d.DBTable, d.DBColumn = pqErr.Table, pqErr.Column
		d.DBDetail, d.DBMessage = pqErr.Detail, pqErr.Message
	case errors.As(err, &liteErr):
		d.DBCode = liteErr.ExtendedCode.Error()
		d.DBMessage = liteErr.Error()
	}
	return d
}

// Fields returns the non-empty parts of the dump keyed for zerolog.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	add := func(key string, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	add("error_code", string(d.Code))
	add("db_code", d.DBCode)
	add("db_constraint", d.DBConstraint)
	add("db_table", d.DBTable)
	add("db_column", d.DBColumn)
	add("db_detail", d.DBDetail)
	add("db_message", d.DBMessage)
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	return fields
}
