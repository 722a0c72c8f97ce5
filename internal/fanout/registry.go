package fanout

import (
	"errors"
	"fmt"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// Registry maps channel kinds to their adapters. It is populated once during
// startup and only read afterwards, so Register must not be called
// concurrently with Resolve.
type Registry struct {
	adapters map[notification.ChannelKind]dispatch.Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[notification.ChannelKind]dispatch.Adapter)}
}

// Register binds an adapter to a channel kind.
func (r *Registry) Register(kind notification.ChannelKind, adapter dispatch.Adapter) error {
	if !kind.Valid() {
		return fmt.Errorf("cannot register adapter for invalid channel %q", kind)
	}
	if adapter == nil {
		return errors.New("cannot register nil adapter for channel " + kind.String())
	}
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("adapter for channel %s already registered", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

// Resolve returns the adapter bound to kind, or an error wrapping
// dispatch.ErrUnknownChannel.
func (r *Registry) Resolve(kind notification.ChannelKind) (dispatch.Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrUnknownChannel, kind)
	}
	return adapter, nil
}

// Channels lists the registered fan-out channels in envelope order.
func (r *Registry) Channels() []notification.ChannelKind {
	kinds := make([]notification.ChannelKind, 0, len(r.adapters))
	for _, kind := range notification.FanOutChannels {
		if _, ok := r.adapters[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
