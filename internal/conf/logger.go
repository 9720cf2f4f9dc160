package conf

import "github.com/tphakala/geocapture/internal/logger"

// GetLogger returns the conf module logger. It is looked up on every call
// so it follows the global logger once main has installed it.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
