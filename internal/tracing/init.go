package tracing

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"gitlab.com/alternet/naming-service/internal/logger"
)

var zlog otelzap.Logger

func init() {
	zlog = logger.OtelZapLogger("tracing")
}
