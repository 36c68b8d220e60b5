package chainsol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrNotConfirmed is returned while a signature has no confirmed status yet.
var ErrNotConfirmed = errors.New("signature not confirmed")

var customErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"Custom":\s*(\d+)`),
	regexp.MustCompile(`Custom:\s*(\d+)`),
	regexp.MustCompile(`Error Number:\s*(\d+)`),
}

var hexCustomError = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// CustomErrorCode extracts a program's custom error code from a transaction
// error. txErr is either the decoded JSON status (for example
// {"InstructionError":[0,{"Custom":6002}]}) or an error returned by the node.
func CustomErrorCode(txErr any) (int, bool) {
	if txErr == nil {
		return 0, false
	}
	var text string
	switch v := txErr.(type) {
	case error:
		text = v.Error()
	case string:
		text = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0, false
		}
		text = string(b)
	}
	for _, re := range customErrorPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if code, err := strconv.Atoi(m[1]); err == nil {
				return code, true
			}
		}
	}
	if m := hexCustomError.FindStringSubmatch(text); len(m) > 1 {
		if code, err := strconv.ParseInt(m[1], 16, 64); err == nil {
			return int(code), true
		}
	}
	return 0, false
}

// FailureReason renders a transaction error for receipts.
func FailureReason(txErr any) string {
	if code, ok := CustomErrorCode(txErr); ok {
		return fmt.Sprintf("custom program error %d", code)
	}
	b, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprintf("%v", txErr)
	}
	return string(b)
}
