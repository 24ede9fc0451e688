package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID generates a prefixed identifier from the current time in milliseconds
// (base36) plus a random suffix. Ids are created client-side on independent
// devices without coordination, so the suffix keeps collisions negligible.
func NewID(prefix string) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s", prefix, strconv.FormatInt(time.Now().UnixMilli(), 36), suffix)
}

// NewTransactionID generates an id for a locally authored transaction.
func NewTransactionID() string {
	return NewID("tx")
}

// NewParticipantID generates an id for a participant.
func NewParticipantID() string {
	return NewID("p")
}

// NewCategoryID generates an id for a category.
func NewCategoryID() string {
	return NewID("c")
}
