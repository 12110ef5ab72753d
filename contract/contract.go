//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"channel-gateway/domain"
	"context"
	"reflect"
)

// SessionStore resolves an opaque session token into a principal.
// The store owns issuance, expiry and timeout policy; callers only see
// the three principal fields or an error.
type SessionStore interface {
	Lookup(ctx context.Context, token string) (domain.Principal, error)
}

// Registry is the channel to subscriber mapping, owned and serialized by
// the transport layer. Admit, Remove and Emit are atomic; callers never
// take locks on it. Admit reports whether the socket was newly added to
// the channel. CurrentSubscribers returns a snapshot taken at call
// time, so a socket admitted one tick later is not in it.
type Registry interface {
	Admit(channel domain.ChannelName, socket domain.SocketID) bool
	Remove(socket domain.SocketID)
	CurrentSubscribers(channel domain.ChannelName) []domain.SocketID
	Emit(socket domain.SocketID, frame domain.Frame) error
}

// Publisher forwards a locally dispatched event to other gateway nodes.
// Best effort, like everything else on the fan-out path.
type Publisher interface {
	Publish(ctx context.Context, evt domain.Event) error
}

// AuditTrail records administrative actions, granted or refused.
type AuditTrail interface {
	Record(entry domain.AuditEntry) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
