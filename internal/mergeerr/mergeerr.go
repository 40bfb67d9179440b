// Package mergeerr defines the error taxonomy of spec §7: data-integrity
// failures, cross-dataset time shifts, and cooperative cancellation. All are
// fatal except cancellation, which is a distinct terminal state rather than
// an error condition callers should alert on.
package mergeerr

import (
	"errors"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/model"
)

// ErrCancelled is returned (wrapped) when a merge job observes its
// cancellation flag between steps.
var ErrCancelled = errors.New("merge cancelled")

// DataIntegrityError reports two messages that are indistinguishable under
// the ordering relation yet not equal, a duplicate source id, or a chat
// member set referencing an unknown user.
type DataIntegrityError struct {
	ChatID  model.ChatID
	Message string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error in chat %d: %s", e.ChatID, e.Message)
}

func NewDataIntegrityError(chatID model.ChatID, format string, args ...any) error {
	return &DataIntegrityError{ChatID: chatID, Message: fmt.Sprintf(format, args...)}
}

// TimeShiftError reports a detected clock offset between two snapshots of
// the same chat (spec §4.3 rule 4): messages that align by source id only
// become practically equal once the slave timestamp is shifted.
type TimeShiftError struct {
	ChatID       model.ChatID
	ShiftSeconds int64 // slave - master; positive means slave is ahead
}

func (e *TimeShiftError) Error() string {
	if e.ShiftSeconds >= 0 {
		return fmt.Sprintf("chat %d: slave is ahead of master by %d sec (%s)", e.ChatID, e.ShiftSeconds, humanizeHours(e.ShiftSeconds))
	}
	return fmt.Sprintf("chat %d: slave is behind master by %d sec (%s)", e.ChatID, -e.ShiftSeconds, humanizeHours(-e.ShiftSeconds))
}

func humanizeHours(seconds int64) string {
	hours := seconds / 3600
	if hours == 1 {
		return "1 hr"
	}
	if hours > 1 && seconds%3600 == 0 {
		return fmt.Sprintf("%d hrs", hours)
	}
	return fmt.Sprintf("%.2f hrs", float64(seconds)/3600)
}

func NewTimeShiftError(chatID model.ChatID, shiftSeconds int64) error {
	return &TimeShiftError{ChatID: chatID, ShiftSeconds: shiftSeconds}
}

// IsCancelled reports whether err is, or wraps, ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
