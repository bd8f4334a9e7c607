package convstore

import (
	"errors"

	"github.com/lqv/messenger/internal/docstore"
)

var (
	ErrUserNotFound         = errors.New("convstore: user not found")
	ErrConversationNotFound = errors.New("convstore: conversation not found")

	// Infrastructure failures surface with the store's own identities.
	ErrTimeout       = docstore.ErrTimeout
	ErrWriteConflict = docstore.ErrConflict
)
