package live

import "context"

// NopChannel satisfies Channel without a backing feed. Sessions run fully
// local: no peers ever arrive and writes go nowhere. Used when Redis is not
// configured.
type NopChannel struct{}

func (NopChannel) Subscribe(context.Context, string, Handlers) (func(), error) {
	return func() {}, nil
}

func (NopChannel) Write(context.Context, string, string, Record) error { return nil }

func (NopChannel) Remove(context.Context, string, string) error { return nil }

func (NopChannel) RegisterRemovalOnDisconnect(context.Context, string, string) error { return nil }

func (NopChannel) CancelRemovalOnDisconnect(context.Context, string, string) error { return nil }
