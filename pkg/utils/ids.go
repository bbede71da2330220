package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenMessageID returns a new message document id.
func GenMessageID() string {
	return "msg_" + compact()
}

// GenSessionID returns a correlation id for one signed-in session.
func GenSessionID() string {
	return "sess_" + compact()
}

// GenEntryID returns a new timeline entry id.
func GenEntryID() string {
	return "ent_" + compact()
}

func compact() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
