package outofoffice

import (
	"errors"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
)

// Message keys returned to clients. They are stable and looked up by the UI for translation.
const (
	KeyDatesRequired           = "start_date_and_end_date_required"
	KeyStartAfterEnd           = "start_date_must_be_before_end_date"
	KeyStartInPast             = "start_date_must_be_in_the_future"
	KeyInvalidOffset           = "invalid_utc_offset"
	KeyNotesTooLong            = "notes_too_long"
	KeyInvalidUUID             = "invalid_uuid"
	KeyInvalidInput            = "invalid_input"
	KeyOnlyAdminCanCreate      = "only_admin_can_create_ooo"
	KeyOnlyAdminCanDelete      = "only_admin_can_delete_ooo"
	KeyUserNotFound            = "user_not_found"
	KeyForwardToTeamMemberOnly = "forward_to_team_member_only"
	KeyEntryExists             = "out_of_office_entry_already_exists"
	KeyReasonRequired          = "reason_id_required"
	KeyReasonNotFound          = "reason_not_found"
	KeyRedirectInfinite        = "booking_redirect_infinite_not_allowed"
	KeyTeamRedirectInfinite    = "ooo_team_redirect_infinite_not_allowed"
	KeyEntryNotFound           = "ooo_entry_not_found"
	KeyInvalidLimit            = "invalid_limit"
	KeyInvalidCursor           = "invalid_cursor"
)

// Error is a caller-facing failure with a machine-readable Kind and a message Key.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Key + ": " + e.Err.Error()
	}
	return e.Key
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Key when the target sets one, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Key == "" || t.Key == e.Key)
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
)

func validationError(key string) error {
	return &Error{Kind: KindValidation, Key: key}
}

func authorizationError(key string) error {
	return &Error{Kind: KindAuthorization, Key: key}
}

func notFoundError(key string) error {
	return &Error{Kind: KindNotFound, Key: key}
}

func conflictError(key string) error {
	return &Error{Kind: KindConflict, Key: key}
}

// KindOf returns the Kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
