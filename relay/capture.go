package relay

import (
	"log/slog"
	"strings"

	"github.com/papercomputeco/glossa/pkg/utils"
)

const maxCaptureLine = 512

// debugCapture logs raw upstream stream lines. sse.TeeReader writes one line
// per Write call.
type debugCapture struct {
	logger *slog.Logger
}

func (d debugCapture) Write(p []byte) (int, error) {
	if line := strings.TrimRight(string(p), "\r\n"); line != "" {
		d.logger.Debug("upstream stream line", "line", utils.Truncate(line, maxCaptureLine))
	}
	return len(p), nil
}
