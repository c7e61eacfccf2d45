package sessions

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

var benignSubstrings = []string{
	"conflict",
	"not-authorized",
	"Socket connection timeout",
	"rate-overlimit",
	"Connection Closed",
	"Timed Out",
	"Value not found",
	"resource-limit",
}

// IsBenign reports whether err is a known, self-healing network error.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range benignSubstrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// logFault logs err at debug when benign and error otherwise.
func logFault(logger *zerolog.Logger, err error, msg string) {
	if IsBenign(err) {
		logger.Debug().Err(err).Msg(msg + " (benign)")
		return
	}
	logger.Error().Err(err).Msg(msg)
}

// guard recovers a panic in an event callback and logs it against the session.
func guard(logger *zerolog.Logger, where string) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = errors.New(fmt.Sprint(r))
	}
	if IsBenign(err) {
		logger.Debug().Err(err).Str("where", where).Msg("recovered benign fault")
		return
	}
	logger.Error().Err(err).Str("where", where).Str("stack", string(debug.Stack())).Msg("recovered panic")
}
