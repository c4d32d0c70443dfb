package config

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Flags are the serve command's overrides. Only flags the user actually set
// are applied, so unset flags never clobber file or environment values.
type Flags struct {
	fs *pflag.FlagSet

	File    string
	EnvFile string

	mode      string
	host      string
	port      int
	addr      string
	dsn       string
	upstream  string
	logLevel  string
	heartbeat time.Duration
}

// NewFlags registers the serve flags on fs.
func NewFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.File, "config", "", "path to a YAML config file")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "path to a dotenv file")
	fs.StringVar(&f.mode, "mode", "", "transport: stdio or http")
	fs.StringVar(&f.host, "host", "127.0.0.1", "HTTP listen host")
	fs.IntVar(&f.port, "port", 8080, "HTTP listen port")
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides --host/--port)")
	fs.StringVar(&f.dsn, "db", "", "SQLite database path")
	fs.StringVar(&f.upstream, "upstream-url", "", "DoiT API base URL")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.DurationVar(&f.heartbeat, "heartbeat", 0, "SSE heartbeat interval")
	return f
}

// Sources returns the file locations given on the command line.
func (f *Flags) Sources() Sources {
	return Sources{File: f.File, EnvFile: f.EnvFile}
}

// Apply writes every explicitly set flag onto cfg.
func (f *Flags) Apply(cfg *Config) {
	set := func(name string) bool { return f.fs.Changed(name) }

	if set("mode") {
		cfg.Mode = f.mode
	}
	switch {
	case set("addr"):
		cfg.HTTPAddr = f.addr
	case set("host") || set("port"):
		host, port, err := net.SplitHostPort(cfg.HTTPAddr)
		if err != nil {
			host, port = "127.0.0.1", "8080"
		}
		if set("host") {
			host = f.host
		}
		if set("port") {
			port = strconv.Itoa(f.port)
		}
		cfg.HTTPAddr = net.JoinHostPort(host, port)
	}
	if set("db") {
		cfg.DBDSN = f.dsn
	}
	if set("upstream-url") {
		cfg.UpstreamURL = f.upstream
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("heartbeat") {
		cfg.HeartbeatInterval = f.heartbeat
	}
}
