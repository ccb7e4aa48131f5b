package datawarehouse

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_DisabledConfig(t *testing.T) {
	logger := zap.NewNop()

	client, err := NewClient(context.Background(), nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)

	client, err = NewClient(context.Background(), &config.DataWarehouseConfig{Enabled: false}, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.DataWarehouseConfig
	}{
		{"missing URL", &config.DataWarehouseConfig{Enabled: true, User: "user", Password: "pass"}},
		{"missing user", &config.DataWarehouseConfig{Enabled: true, URL: "host:1433/db", Password: "pass"}},
		{"missing password", &config.DataWarehouseConfig{Enabled: true, URL: "host:1433/db", User: "user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.cfg, zap.NewNop())
			assert.NoError(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestBuildConnectionString(t *testing.T) {
	cfg := &config.DataWarehouseConfig{URL: "dw.example.net:14330/reporting", User: "reader", Password: "p@ss"}

	s, err := buildConnectionString(cfg)
	require.NoError(t, err)

	u, err := url.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "dw.example.net:14330", u.Host)
	assert.Equal(t, "reporting", u.Query().Get("database"))
	assert.Equal(t, "ReadOnly", u.Query().Get("ApplicationIntent"))
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	s, err = buildConnectionString(&config.DataWarehouseConfig{URL: "dw.example.net", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Contains(t, s, "dw.example.net:1433")

	_, err = buildConnectionString(&config.DataWarehouseConfig{URL: "/db"})
	assert.Error(t, err)
}

func TestBookingDateQuery(t *testing.T) {
	query, args := bookingDateQuery([]string{"PO-1", "PO-2", "PO-3"})

	assert.Contains(t, query, SalesOrderTable)
	assert.Contains(t, query, "IN (@p1, @p2, @p3)")
	assert.Equal(t, []interface{}{"PO-1", "PO-2", "PO-3"}, args)
	assert.Equal(t, 1, strings.Count(query, "GROUP BY"))
}

func TestClient_NilSafe(t *testing.T) {
	var c *Client

	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Close())
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)

	_, err := c.GetSAPBookingDates(context.Background(), []string{"PO-1"})
	assert.Error(t, err)
}
