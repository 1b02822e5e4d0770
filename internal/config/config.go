package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// FlushDiskType selects how a put waits for durability before returning,
// matching the original's ASYNC_FLUSH/SYNC_FLUSH broker config.
type FlushDiskType int

const (
	AsyncFlush FlushDiskType = iota
	SyncFlush
)

// BrokerRole selects whether PutMessage waits on slave acknowledgement.
type BrokerRole int

const (
	AsyncMaster BrokerRole = iota
	SyncMaster
	Slave
)

// Config covers every option named in the engine's external-interface
// surface: where segments live, how big they are, how records flush,
// and how aggressively recovery double-checks CRCs.
type Config struct {
	StorePathCommitLog string `mapstructure:"storePathCommitLog"`
	StorePathCheckpoint string `mapstructure:"storePathCheckpoint"`

	MappedFileSizeCommitLog int64 `mapstructure:"mappedFileSizeCommitLog"`
	MaxMessageSize          int32 `mapstructure:"maxMessageSize"`

	FlushDiskType FlushDiskType `mapstructure:"flushDiskType"`

	FlushIntervalCommitLog         time.Duration `mapstructure:"flushIntervalCommitLog"`
	FlushCommitLogLeastPages       int32         `mapstructure:"flushCommitLogLeastPages"`
	FlushCommitLogThoroughInterval time.Duration `mapstructure:"flushCommitLogThoroughInterval"`
	SyncFlushTimeout               time.Duration `mapstructure:"syncFlushTimeout"`

	UseReentrantLockWhenPutMessage bool `mapstructure:"useReentrantLockWhenPutMessage"`

	BrokerRole        BrokerRole `mapstructure:"brokerRole"`
	CheckCRCOnRecover bool       `mapstructure:"checkCRCOnRecover"`

	DeleteWhen          string        `mapstructure:"deleteWhen"`
	FileReservedTime    time.Duration `mapstructure:"fileReservedTime"`
	DestroyMapedFileIntervalForcibly time.Duration `mapstructure:"destroyMapedFileIntervalForcibly"`
}

// Defaults matches the originals' own defaults, so a broker started with
// no config file behaves the same as the RocketMQ defaults it was
// modeled on.
func Defaults() Config {
	return Config{
		StorePathCommitLog:              "./store/commitlog",
		StorePathCheckpoint:             "./store/checkpoint",
		MappedFileSizeCommitLog:         1024 * 1024 * 1024,
		MaxMessageSize:                  4 * 1024 * 1024,
		FlushDiskType:                   AsyncFlush,
		FlushIntervalCommitLog:          500 * time.Millisecond,
		FlushCommitLogLeastPages:        4,
		FlushCommitLogThoroughInterval:  10 * time.Second,
		SyncFlushTimeout:                5 * time.Second,
		UseReentrantLockWhenPutMessage:  false,
		BrokerRole:                      AsyncMaster,
		CheckCRCOnRecover:               true,
		DeleteWhen:                      "04",
		FileReservedTime:                72 * time.Hour,
		DestroyMapedFileIntervalForcibly: 120 * time.Second,
	}
}

// Load reads configuration from path (YAML) and environment variables
// prefixed DURAQ_, overlaying onto Defaults(). A missing file is not an
// error — it just means the defaults stand.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DURAQ")
	v.AutomaticEnv()

	v.SetDefault("storePathCommitLog", cfg.StorePathCommitLog)
	v.SetDefault("storePathCheckpoint", cfg.StorePathCheckpoint)
	v.SetDefault("mappedFileSizeCommitLog", cfg.MappedFileSizeCommitLog)
	v.SetDefault("maxMessageSize", cfg.MaxMessageSize)
	v.SetDefault("flushIntervalCommitLog", cfg.FlushIntervalCommitLog)
	v.SetDefault("flushCommitLogLeastPages", cfg.FlushCommitLogLeastPages)
	v.SetDefault("flushCommitLogThoroughInterval", cfg.FlushCommitLogThoroughInterval)
	v.SetDefault("syncFlushTimeout", cfg.SyncFlushTimeout)
	v.SetDefault("useReentrantLockWhenPutMessage", cfg.UseReentrantLockWhenPutMessage)
	v.SetDefault("checkCRCOnRecover", cfg.CheckCRCOnRecover)
	v.SetDefault("deleteWhen", cfg.DeleteWhen)
	v.SetDefault("fileReservedTime", cfg.FileReservedTime)
	v.SetDefault("destroyMapedFileIntervalForcibly", cfg.DestroyMapedFileIntervalForcibly)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
