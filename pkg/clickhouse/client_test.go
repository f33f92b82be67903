package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(8123),
		WithDatabase("quant_db"),
		WithCredentials("reader", "p@ss"),
		WithHTTP(true),
		WithMaxExecutionTime(90 * time.Second),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "ch.local:8123", u.Host)
	assert.Equal(t, "/quant_db", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "90", u.Query().Get("max_execution_time"))
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Empty(t, u.Query().Get("async_insert"))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
