package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/geocapture/internal/analysis"
	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/storage"
	"github.com/tphakala/geocapture/internal/thumbnail"
	"github.com/tphakala/geocapture/internal/vision"
)

// setDefaultConfig sets the default value of every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("database.driver", datastore.DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxopenconns", 10)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 30*time.Minute)
	v.SetDefault("database.automigrate", false)
	v.SetDefault("database.slowquery", 500*time.Millisecond)

	v.SetDefault("storage.region", storage.DefaultRegion)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.maximagesizebytes", storage.DefaultMaxImageSize)

	v.SetDefault("vision.endpoint", vision.DefaultEndpoint)
	v.SetDefault("vision.model", vision.DefaultModel)
	v.SetDefault("vision.timeout", vision.DefaultTimeout)
	v.SetDefault("vision.ratelimit", 1.0)
	v.SetDefault("vision.rateburst", 1)
	v.SetDefault("vision.breaker.enabled", true)
	v.SetDefault("vision.breaker.consecutivefailures", 5)
	v.SetDefault("vision.breaker.opentimeout", time.Minute)
	v.SetDefault("vision.breaker.halfopenrequests", 1)

	retry := analysis.DefaultRetryConfig()
	v.SetDefault("worker.analysisenabled", true)
	v.SetDefault("worker.intervalseconds", int(analysis.DefaultInterval/time.Second))
	v.SetDefault("worker.batchsize", analysis.DefaultBatchSize)
	v.SetDefault("worker.maxattempts", datastore.DefaultMaxAttempts)
	v.SetDefault("worker.retry.maxretries", retry.MaxRetries)
	v.SetDefault("worker.retry.initialdelay", retry.InitialDelay)
	v.SetDefault("worker.retry.multiplier", retry.Multiplier)
	v.SetDefault("worker.retry.maxdelay", retry.MaxDelay)
	v.SetDefault("worker.transientescalationafter", time.Duration(0))
	v.SetDefault("worker.leaseduration", time.Duration(0))
	v.SetDefault("worker.thumbnailenabled", true)
	v.SetDefault("worker.maxthumbnailwidth", thumbnail.DefaultWidth)
	v.SetDefault("worker.maxthumbnailheight", thumbnail.DefaultHeight)
	v.SetDefault("worker.thumbnailquality", thumbnail.DefaultQuality)
	v.SetDefault("worker.queueretentiondays", int(analysis.DefaultPurgeRetention/(24*time.Hour)))
	v.SetDefault("worker.purgeschedule", analysis.DefaultPurgeSchedule)

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "UTC")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "0.0.0.0:9090")
	v.SetDefault("telemetry.sentrydsn", "")
}
