package viewer

import (
	"fmt"
	"log/slog"

	"github.com/diewo77/stockroom/internal/apperr"
)

// Severity ranks a Notice for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-facing message derived from a failed mutation.
type Notice struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// NoticeFor translates err into a message about label ("product", ...).
// Raw codes and causes never reach the message; unexpected errors are
// logged instead.
func NoticeFor(err error, label string) Notice {
	switch apperr.CodeOf(err) {
	case apperr.CodeForbidden:
		return Notice{fmt.Sprintf("You don't have permission to modify this %s.", label), SeverityError}
	case apperr.CodeNotFound:
		return Notice{fmt.Sprintf("This %s could not be found.", label), SeverityWarning}
	case apperr.CodeUnauthorized:
		return Notice{"Please sign in to continue.", SeverityInfo}
	case apperr.CodeBadRequest:
		return Notice{"The request was invalid. Please check the form and try again.", SeverityWarning}
	}
	slog.Error("unexpected mutation failure", "resource", label, "err", err)
	return Notice{"Something went wrong. Please try again.", SeverityError}
}
