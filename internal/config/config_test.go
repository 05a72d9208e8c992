package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	b, err := json.Marshal(contents)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func baseConfigJSON() map[string]any {
	return map[string]any{
		"route_table": []map[string]any{
			{"path": "/btcusd", "backend_url": "http://127.0.0.1:9001/btcusd", "price": "10", "rail": "lightning-channel"},
		},
		"free_route_table": []string{"/health"},
	}
}

func TestLoad_AppliesDefaultsAndEnvOverlay(t *testing.T) {
	path := writeConfigFile(t, baseConfigJSON())

	t.Setenv("SLO_PAYMENT_NODE_BASE_URL", "https://mycelia.example.com:8080")
	t.Setenv("SLO_PAYMENT_NODE_CREDENTIAL_PATH", "/creds/admin.macaroon")
	t.Setenv("SLO_KEYSTORE_DIR", "/var/lib/slo/keys")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "https://mycelia.example.com:8080", cfg.PaymentNodeBaseURL)
	assert.Equal(t, 10, cfg.BlockedThreshold)
	assert.Equal(t, 5, int(cfg.DigitCount))
	assert.Equal(t, 0.02, cfg.DepegTolerance)

	routes, err := cfg.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "/btcusd", routes[0].Path)
}

func TestLoad_RejectsUnknownTopLevelKey(t *testing.T) {
	body := baseConfigJSON()
	body["totally_unknown_key"] = true
	path := writeConfigFile(t, body)

	t.Setenv("SLO_PAYMENT_NODE_BASE_URL", "https://mycelia.example.com:8080")
	t.Setenv("SLO_PAYMENT_NODE_CREDENTIAL_PATH", "/creds/admin.macaroon")
	t.Setenv("SLO_KEYSTORE_DIR", "/var/lib/slo/keys")

	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoad_MissingRequiredEnvFailsValidation(t *testing.T) {
	path := writeConfigFile(t, baseConfigJSON())

	_, err := Load(path, "")
	assert.Error(t, err)
}
