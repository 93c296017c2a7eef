//go:build !unix

package panelstart

import (
	"context"
)

// execHandoff falls back to attached mode where exec(2) is unavailable
func execHandoff(ctx context.Context, req HandoffRequest) error {
	req.Logger.Debug().Msg("process replacement unsupported, running primary attached")
	return runAttached(ctx, req)
}
