package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
)

var oraCodePattern = regexp.MustCompile(`ORA-\d{5}`)

// Pool and session exhaustion
var resourceCodes = map[string]bool{
	"ORA-00018": true, // maximum number of sessions exceeded
	"ORA-00020": true, // maximum number of processes exceeded
	"ORA-12516": true, // listener could not find available handler
	"ORA-12519": true, // no appropriate service handler found
	"ORA-12520": true,
}

// Lost or refused connections worth retrying
var transientCodes = map[string]bool{
	"ORA-03113": true, // end-of-file on communication channel
	"ORA-03114": true, // not connected
	"ORA-03135": true, // connection lost contact
	"ORA-12170": true, // connect timeout
	"ORA-12541": true, // no listener
	"ORA-12537": true, // connection closed
}

var notFoundCodes = map[string]bool{
	"ORA-00942": true, // table or view does not exist
	"ORA-04043": true, // object does not exist
	"ORA-01418": true, // specified index does not exist
}

// ErrorCode extracts the vendor error code from a driver error
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return oraCodePattern.FindString(err.Error())
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused")
}

// classifyRead maps a metadata read failure onto the error taxonomy
func classifyRead(op string, ref string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	code := ErrorCode(err)
	var e *apperr.Error
	switch {
	case resourceCodes[code]:
		e = apperr.Resource(op, err)
	case notFoundCodes[code]:
		e = &apperr.Error{Kind: apperr.KindNotFound, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		e = apperr.Resource(op, err)
	default:
		e = apperr.DataAccess(op, err, transientCodes[code] || isConnectionError(err))
	}
	e.Code = code
	if ref != "" {
		e.Schema, e.Table, _ = strings.Cut(ref, ".")
	}
	return e
}

// classifyApply maps a DDL failure. Pool exhaustion stays a resource
// error so it can be retried before the statement ever ran; anything
// else is a compression failure carrying the vendor code.
func classifyApply(op string, err error) error {
	if err == nil {
		return nil
	}
	code := ErrorCode(err)
	if resourceCodes[code] {
		e := apperr.Resource(op, err)
		e.Code = code
		return e
	}
	return &apperr.Error{Kind: apperr.KindCompression, Op: op, Code: code, Err: err}
}
