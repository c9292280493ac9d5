package collector

import (
	"context"
	"net"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/pkg/errors"
)

// SQL Server error numbers that indicate a credential or permission problem.
var authErrorNumbers = map[int32]struct{}{
	4060:  {}, // cannot open database
	4064:  {}, // cannot open user default database
	18452: {}, // login from untrusted domain
	18456: {}, // login failed
	18461: {}, // admin-only mode
}

var authErrorSubstrings = []string{
	"login failed",
	"login error",
	"invalid credentials",
	"invalid password",
	"password is incorrect",
	"unauthorized",
	"access denied",
	"permission was denied",
	"showplan permission denied",
}

var transientErrorSubstrings = []string{
	"timeout",
	"i/o timeout",
	"tls handshake timeout",
	"eof",
	"unexpected eof",
	"broken pipe",
	"connection reset",
	"connection refused",
	"connection aborted",
	"connection closed",
	"use of closed network connection",
	"network is unreachable",
	"no route to host",
	"no such host",
	"deadlock",
}

// IsAuthError reports whether err stems from bad credentials or missing
// permissions. Such failures are never transient.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		if _, ok := authErrorNumbers[sqlErr.Number]; ok {
			return true
		}
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range authErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}

// IsTransientError reports whether err looks like a connectivity hiccup
// rather than a defect in the query or the configuration. The pipeline
// never retries; the classification only drives degradation decisions and
// exit codes.
func IsTransientError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if IsAuthError(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range transientErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}
