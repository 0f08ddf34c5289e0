package bridge

import (
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	options := &Options{}
	_, err := flags.ParseArgs(options, []string{})
	assert.NoError(t, err)
	assert.Equal(t, TransportSSE, options.Transport)
	assert.Equal(t, "127.0.0.1:8100", options.Address())
	assert.Equal(t, "info", options.LogLevel)

	assert.Error(t, options.Validate(), "a directory source is required")
	options.Config = "bridge.yaml"
	assert.NoError(t, options.Validate())
}

func TestOptions_Parse(t *testing.T) {
	options := &Options{}
	_, err := flags.ParseArgs(options, []string{
		"-t", "streamable",
		"--host", "0.0.0.0",
		"-p", "9200",
		"--log-level", "debug",
		"-d", "postgres://bridge:pw@db/bridge",
		"--cors-origin", "https://studio.example.com",
		"--cors-origin", "https://console.example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, TransportStreamable, options.Transport)
	assert.Equal(t, "0.0.0.0:9200", options.Address())
	assert.Equal(t, "postgres://bridge:pw@db/bridge", options.DSN)
	assert.Equal(t, []string{"https://studio.example.com", "https://console.example.com"}, options.CORSOrigins)
	assert.NoError(t, options.Validate())

	_, err = flags.ParseArgs(&Options{}, []string{"-t", "telepathy"})
	assert.Error(t, err)
}

func TestOptions_CORSFromEnv(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	options := &Options{}
	_, err := flags.ParseArgs(options, []string{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, options.CORSOrigins)
}
