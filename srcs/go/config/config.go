package config

import (
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lsds/dagcoll/srcs/go/utils"
)

const (
	EagerCutoffEnvKey       = `DAGCOLL_CONFIG_EAGER_CUTOFF`
	UseGetProtocolEnvKey    = `DAGCOLL_CONFIG_USE_GET_PROTOCOL`
	LogLevelEnvKey          = `DAGCOLL_CONFIG_LOG_LEVEL`
	LoopbackColocatedEnvKey = `DAGCOLL_CONFIG_LOOPBACK_COLOCATED`
)

var ConfigEnvKeys = []string{
	EagerCutoffEnvKey,
	UseGetProtocolEnvKey,
	LogLevelEnvKey,
	LoopbackColocatedEnvKey,
}

// DefaultEagerCutoff is the message size in bytes from which transfers
// switch from the eager protocol to a rendezvous protocol.
const DefaultEagerCutoff = 512

var (
	EagerCutoff       uint64 = DefaultEagerCutoff
	UseGetProtocol           = false
	LogLevel                 = `INFO`
	LoopbackColocated        = false
)

func init() {
	if val := os.Getenv(EagerCutoffEnvKey); len(val) > 0 {
		EagerCutoff = parseBytes(val)
	}
	if val := os.Getenv(UseGetProtocolEnvKey); len(val) > 0 {
		UseGetProtocol = isTrue(val)
	}
	if val := os.Getenv(LogLevelEnvKey); len(val) > 0 {
		LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv(LoopbackColocatedEnvKey); len(val) > 0 {
		LoopbackColocated = isTrue(val)
	}
}

func isTrue(val string) bool {
	return val == "true"
}

func parseBytes(val string) uint64 {
	n, err := humanize.ParseBytes(val)
	if err != nil {
		utils.ExitErr(err)
	}
	return n
}
