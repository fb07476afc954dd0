package replay

import "fmt"

type ReplayError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	// Line is the first diverging log line on a verify mismatch, or -1.
	Line int `json:"line"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line >= 0 {
		return fmt.Sprintf("replay error(reason=%s line=%d): %s", e.Reason, e.Line, e.Message)
	}
	return fmt.Sprintf("replay error(reason=%s): %s", e.Reason, e.Message)
}

func specError(reason, format string, args ...any) *ReplayError {
	return &ReplayError{Reason: reason, Message: fmt.Sprintf(format, args...), Line: -1}
}
