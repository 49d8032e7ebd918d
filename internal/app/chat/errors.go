package chat

import (
	"errors"
	"fmt"

	"nestchat/internal/infra/api"
	"nestchat/internal/infra/auth"
)

// User-facing error taxonomy. Validation and auth failures are terminal;
// transient transport failures may be retried by the transport itself but
// never by the stores.
var (
	// ErrAuthRequired means the operation needs a signed-in user.
	ErrAuthRequired = errors.New("chat: authentication required")

	// ErrValidation means the input was malformed and retrying is pointless.
	ErrValidation = errors.New("chat: invalid input")

	// ErrSelfConversation rejects starting a thread with yourself. It is a
	// validation failure, so errors.Is(err, ErrValidation) also holds.
	ErrSelfConversation = fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)

	// ErrNotFound means the conversation or message no longer exists
	// server-side.
	ErrNotFound = errors.New("chat: not found")
)

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// classify folds transport-level errors into the store taxonomy. Unknown
// errors pass through unchanged so their chains stay inspectable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, api.ErrBadRequest):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		return err
	}
}
