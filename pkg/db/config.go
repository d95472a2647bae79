package db

import "time"

// Config holds connection pool settings applied after the dialect is opened.
type Config struct {
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SlowThreshold   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxIdleConn <= 0 {
		c.MaxIdleConn = 5
	}
	if c.MaxOpenConn <= 0 {
		c.MaxOpenConn = 20
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	return c
}
