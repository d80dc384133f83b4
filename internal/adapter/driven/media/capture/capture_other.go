//go:build !linux || !cgo

package capture

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pion/webrtc/v4"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
)

// Provider is the stub for platforms without capture driver support.
type Provider struct{}

func NewProvider() (*Provider, error) {
	return &Provider{}, nil
}

func (p *Provider) Populate(*webrtc.MediaEngine) {}

func (p *Provider) Acquire(ctx context.Context, mode domain.CallMode) (port.LocalStream, error) {
	return nil, fmt.Errorf("%w: no capture drivers on %s", domain.ErrDeviceNotFound, runtime.GOOS)
}
