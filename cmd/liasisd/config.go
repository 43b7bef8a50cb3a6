package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/cihub/seelog"
	"github.com/codegangsta/cli"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/domain"
)

// daemonConfig is the resolved set of tunables the daemon runs with, built
// from CLI flags the way containerd's daemon() builds its own config
// straight off a *cli.Context, with an optional JSON config file merged
// in underneath them for values the operator didn't pass on the command
// line.
type daemonConfig struct {
	listen          string
	clientCount     int
	livenessEvery   time.Duration
	tickEvery       time.Duration
	deadlockTimeout time.Duration
	dhtPort         int
	redisAddr       string
	logConfig       string
	configPath      string
}

// fileConfig is the shape of an optional --config JSON file. Int-valued
// fields are pointers so a field the file never mentions can be told apart
// from one explicitly set to its zero value.
type fileConfig struct {
	Listen          string `json:"listen"`
	Clients         *int   `json:"clients"`
	LivenessSeconds *int   `json:"liveness_interval_seconds"`
	TickSeconds     *int   `json:"tick_interval_seconds"`
	DeadlockSeconds *int   `json:"deadlock_timeout_seconds"`
	DHTPort         *int   `json:"dht_port"`
	RedisAddr       string `json:"redis_addr"`
	LogConfig       string `json:"log_config"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: reading config file")
	}
	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, errors.Wrap(err, "config: parsing config file")
	}
	return &fc, nil
}

func configFromContext(c *cli.Context) (*daemonConfig, error) {
	cfg := &daemonConfig{
		listen:          c.String("listen"),
		clientCount:     c.Int("clients"),
		livenessEvery:   c.Duration("liveness-interval"),
		tickEvery:       c.Duration("tick-interval"),
		deadlockTimeout: c.Duration("deadlock-timeout"),
		dhtPort:         c.Int("dht-port"),
		redisAddr:       c.String("redis-addr"),
		logConfig:       c.String("log-config"),
		configPath:      c.String("config"),
	}
	if cfg.configPath != "" {
		fc, err := loadConfigFile(cfg.configPath)
		if err != nil {
			return nil, err
		}
		applyFileConfig(cfg, fc, c)
	}
	if cfg.listen == "" {
		return nil, errors.New("config: --listen is required")
	}
	if cfg.clientCount < 0 {
		return nil, fmt.Errorf("config: --clients must be >= 0, got %d", cfg.clientCount)
	}
	return cfg, nil
}

// applyFileConfig lets fc fill in any field whose flag the operator didn't
// pass explicitly, so the file sits underneath the CLI flags rather than
// overriding them.
func applyFileConfig(cfg *daemonConfig, fc *fileConfig, c *cli.Context) {
	if !c.IsSet("listen") && fc.Listen != "" {
		cfg.listen = fc.Listen
	}
	if !c.IsSet("clients") && fc.Clients != nil {
		cfg.clientCount = *fc.Clients
	}
	if !c.IsSet("liveness-interval") && fc.LivenessSeconds != nil {
		cfg.livenessEvery = time.Duration(*fc.LivenessSeconds) * time.Second
	}
	if !c.IsSet("tick-interval") && fc.TickSeconds != nil {
		cfg.tickEvery = time.Duration(*fc.TickSeconds) * time.Second
	}
	if !c.IsSet("deadlock-timeout") && fc.DeadlockSeconds != nil {
		cfg.deadlockTimeout = time.Duration(*fc.DeadlockSeconds) * time.Second
	}
	if !c.IsSet("dht-port") && fc.DHTPort != nil {
		cfg.dhtPort = *fc.DHTPort
	}
	if !c.IsSet("redis-addr") && fc.RedisAddr != "" {
		cfg.redisAddr = fc.RedisAddr
	}
	if !c.IsSet("log-config") && fc.LogConfig != "" {
		cfg.logConfig = fc.LogConfig
	}
}

// reloadClientCount re-reads cfg's config file, if one was given at
// startup, and returns its clients value; this is what lets a SIGHUP
// reload actually change the client count instead of reconfiguring to the
// exact count the daemon already has. Absent a config file, or if the file
// doesn't mention clients, it returns the count the daemon already runs
// with.
func reloadClientCount(cfg *daemonConfig) int {
	if cfg.configPath == "" {
		return cfg.clientCount
	}
	fc, err := loadConfigFile(cfg.configPath)
	if err != nil {
		log.Warnf("config: reload failed, keeping current client count: %s", err)
		return cfg.clientCount
	}
	if fc.Clients != nil {
		return *fc.Clients
	}
	return cfg.clientCount
}

// setupLogging installs a seelog logger from either an XML config file
// path or, absent one, an inline minimal XML string — the same
// LoggerFromConfigAsString/ReplaceLogger idiom clistub.go's silencelog
// uses for the CLI tool's own logger.
func setupLogging(path string) error {
	var logger log.LoggerInterface
	var err error
	if path != "" {
		logger, err = log.LoggerFromConfigAsFile(path)
	} else {
		logger, err = log.LoggerFromConfigAsString(defaultLogConfig)
	}
	if err != nil {
		return errors.Wrap(err, "config: failed to load log configuration")
	}
	return log.ReplaceLogger(logger)
}

const defaultLogConfig = `
<seelog minlevel="info">
	<outputs>
		<console formatid="liasis"/>
	</outputs>
	<formats>
		<format id="liasis" format="%Date %Time [%LEV] %Msg%n"/>
	</formats>
</seelog>`

// buildHistoryStore wires redisAddr into a RedisHistoryStore when set,
// falling back to the in-process MemoryHistoryStore otherwise.
func buildHistoryStore(redisAddr string) domain.HistoryStore {
	if redisAddr == "" {
		return domain.NewMemoryHistoryStore()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	return domain.NewRedisHistoryStore(client)
}

// buildPeerSource wires dhtPort into a DHTPeerSource when positive,
// falling back to a no-op source that leaves FORCEBTCREANNOUNCE logging
// only.
func buildPeerSource(dhtPort int) domain.PeerSource {
	if dhtPort <= 0 {
		return domain.NoopPeerSource{}
	}
	src, err := domain.NewDHTPeerSource(dhtPort)
	if err != nil {
		log.Warnf("config: failed to start dht node on port %d: %s", dhtPort, err)
		return domain.NoopPeerSource{}
	}
	return src
}
