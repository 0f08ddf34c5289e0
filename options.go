package bridge

import "fmt"

// Transport selection values for the -t flag.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

// Options holds the command line surface of the bridge.
type Options struct {
	Transport string `short:"t" long:"transport" description:"client transport" choice:"stdio" choice:"sse" choice:"streamable" default:"sse"`
	Host      string `long:"host" description:"bind host" default:"127.0.0.1"`
	Port      int    `short:"p" long:"port" description:"bind port" default:"8100"`
	LogLevel  string `long:"log-level" description:"process log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	Config    string `short:"c" long:"config" description:"directory config file URL"`
	DSN       string `short:"d" long:"dsn" description:"directory database DSN" env:"BRIDGE_DATABASE_URL"`
	BaseURL   string `long:"base-url" description:"externally reachable base URL" env:"BRIDGE_BASE_URL"`

	CORSOrigins []string `long:"cors-origin" description:"allowed browser origin, repeatable" env:"CORS_ORIGINS" env-delim:","`
}

// Validate checks that a directory source was supplied.
func (o *Options) Validate() error {
	if o.Config == "" && o.DSN == "" {
		return fmt.Errorf("no directory configured: supply --config or --dsn")
	}
	return nil
}

// Address returns the HTTP bind address.
func (o *Options) Address() string {
	return fmt.Sprintf("%v:%v", o.Host, o.Port)
}
