package lifecycle

import "context"

// Embeddable provides default no-op Start/Stop/Ready so a simple Service
// only needs to override the hooks it actually uses.
type Embeddable struct{}

func (Embeddable) Name() string { return "" }

func (Embeddable) Start(ctx context.Context) error {
	_ = ctx
	return nil
}

func (Embeddable) Stop(ctx context.Context) error {
	_ = ctx
	return nil
}

func (Embeddable) Ready(ctx context.Context) error {
	_ = ctx
	return nil
}
