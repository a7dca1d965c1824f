package lock

import "time"

// Mode selects what Acquire does when the key is already held.
type Mode string

const (
	// ModeFailFast returns ErrLocked immediately.
	ModeFailFast Mode = "fail_fast"
	// ModeBlock waits for the holder to release, bounded by WaitSeconds.
	ModeBlock Mode = "block"
)

// Config holds configuration for scope locking.
type Config struct {
	// Driver is the lock backend (memory, redis).
	Driver string `mapstructure:"driver" default:"memory"`
	// Mode is the contention policy (fail_fast, block).
	Mode Mode `mapstructure:"mode" default:"fail_fast"`
	// RedisAddr is the Redis address used by the redis driver.
	RedisAddr string `mapstructure:"redis_addr" default:"localhost:6379"`
	// RedisPassword is the Redis password.
	RedisPassword string `mapstructure:"redis_password" default:""`
	// RedisDB is the Redis database index.
	RedisDB int `mapstructure:"redis_db" default:"0"`
	// TTLSeconds bounds how long a redis lease survives a crashed holder.
	TTLSeconds int `mapstructure:"ttl_seconds" default:"300"`
	// WaitSeconds bounds how long block mode waits.
	WaitSeconds int `mapstructure:"wait_seconds" default:"30"`
}

func (c Config) ttl() time.Duration {
	if c.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c Config) wait() time.Duration {
	if c.WaitSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WaitSeconds) * time.Second
}
