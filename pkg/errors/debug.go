package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"google.golang.org/api/googleapi"
)

// ErrorDump flattens an error chain for structured logs. Database fields are
// filled from pgx or lib/pq errors; sheet fields from Google API errors.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	SheetsStatus int    `json:"sheets_status,omitempty"`
	SheetsReason string `json:"sheets_reason,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(d.Code).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	d.fillPostgres(err)
	d.fillSheets(err)
	return d
}

// Fields renders the non-empty parts of the dump as log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
		fields["retryable"] = d.Retryable
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_constraint"] = d.PGConstraint
		fields["pg_table"] = d.PGTable
		fields["pg_column"] = d.PGColumn
		fields["pg_detail"] = d.PGDetail
		fields["pg_message"] = d.PGMessage
	}
	if d.SheetsStatus != 0 {
		fields["sheets_status"] = d.SheetsStatus
		fields["sheets_reason"] = d.SheetsReason
	}
	return fields
}

func (d *ErrorDump) fillPostgres(err error) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		return
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}
}

func (d *ErrorDump) fillSheets(err error) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return
	}
	d.SheetsStatus = apiErr.Code
	if len(apiErr.Errors) > 0 {
		d.SheetsReason = apiErr.Errors[0].Reason
		return
	}
	d.SheetsReason = apiErr.Message
}
