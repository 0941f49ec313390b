package clickhouse

import "time"

type ClientOption func(*ClientConfig)

type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	UseHTTP         bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	PingTimeout     time.Duration
	MaxExecTime     time.Duration
	AsyncInsert     bool
	WaitForAsync    bool
}

// WithAddress sets host and native port.
func WithAddress(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) { c.Database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithPool sets pool limits.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

// WithTimeouts sets dial and read timeouts. Zero keeps the default.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithAsyncInsert toggles async_insert and whether inserts wait for the flush.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = wait
	}
}

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}
