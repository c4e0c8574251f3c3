package clickhouse

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig describes the export connection: where bars go and how
// inserts are committed. The pool is fixed because export inserts from a
// single goroutine.
type ClientConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	UseHTTP     bool
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Insert      InsertSettings
}

// InsertSettings are the per-query server settings and the client side
// block size used by InsertBatch.
type InsertSettings struct {
	Async        bool
	WaitForAsync bool
	MaxExecTime  time.Duration
	// BatchSize is the row count of one InsertBatch block.
	BatchSize int
}

const (
	poolOpen     = 2
	poolIdle     = 1
	poolLifetime = 5 * time.Minute
)

func defaultConfig() ClientConfig {
	return ClientConfig{
		Port:        9000,
		Database:    "default",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 30 * time.Second,
		Insert:      InsertSettings{BatchSize: 2000},
	}
}

func (c ClientConfig) validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.Insert.WaitForAsync && !c.Insert.Async {
		errs = append(errs, errors.New("wait_for_async_insert needs async_insert"))
	}
	return errors.Join(errs...)
}

func (c ClientConfig) addr() string { return c.Host + ":" + strconv.Itoa(c.Port) }

// dsn renders the clickhouse-go DSN. write_timeout stays client side;
// older servers reject it as a setting.
func (c ClientConfig) dsn() string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.addr(),
		Path:   "/" + c.Database,
	}
	if c.UseHTTP {
		u.Scheme = "clickhouse+http"
	}

	q := url.Values{}
	if c.DialTimeout > 0 {
		q.Set("dial_timeout", c.DialTimeout.String())
	}
	if c.ReadTimeout > 0 {
		q.Set("read_timeout", c.ReadTimeout.String())
	}
	if c.Insert.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(c.Insert.MaxExecTime.Seconds())))
	}
	if c.Insert.Async {
		q.Set("async_insert", "1")
		if c.Insert.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WithEndpoint sets host, port and database; zero values keep the defaults.
func WithEndpoint(host string, port int, database string) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		if port != 0 {
			c.Port = port
		}
		if database != "" {
			c.Database = database
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithHTTP switches to the HTTP interface.
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithTimeouts sets the dial and read timeouts; zero keeps the default.
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

// WithInsert replaces the insert settings; a non-positive batch size keeps
// the default.
func WithInsert(s InsertSettings) ClientOption {
	return func(c *ClientConfig) {
		if s.BatchSize <= 0 {
			s.BatchSize = c.Insert.BatchSize
		}
		c.Insert = s
	}
}
