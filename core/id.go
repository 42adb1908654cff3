package core

import (
	"github.com/google/uuid"

	"pkt.systems/tabkeeper/schema"
)

func newSessionID() schema.SessionID {
	return schema.SessionID(uuid.NewString())
}
