package libp2p

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"gitlab.com/alternet/naming-service/internal/logger"
)

const (
	// Namespace of naming records in the DHT.
	namespace = "alternet"
)

var zlog otelzap.Logger

func init() {
	zlog = logger.OtelZapLogger("network.libp2p")
}
