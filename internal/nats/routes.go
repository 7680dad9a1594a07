package nats

import (
	"github.com/SecurePass-Share/Transfer-Service/internal/api/handlers"
	"github.com/nats-io/nats.go"
)

func Routes() map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{

		// User events
		"users.deleted": handlers.HandleUserDeleted,
	}
}
