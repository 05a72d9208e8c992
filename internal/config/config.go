// Package config loads the process-wide typed configuration record spec §6
// defines: payment-node connectivity, the route table, stablecoin-rail
// parameters, and the timing knobs every component reads at construction.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/myceliasignal/slo/internal/domain"
)

// RouteConfig is the JSON shape of one entry in route_table.
type RouteConfig struct {
	Path        string `json:"path" validate:"required"`
	Backend     string `json:"backend_url" validate:"required,url"`
	PriceNative string `json:"price" validate:"required"`
	Rail        string `json:"rail" validate:"required,oneof=lightning-channel stablecoin-evm"`
}

// PrefixRouteConfig is the JSON shape of one entry in prefix_route_table.
type PrefixRouteConfig struct {
	Prefix      string `json:"prefix" validate:"required"`
	Backend     string `json:"backend_url" validate:"required,url"`
	PriceNative string `json:"price" validate:"required"`
	Rail        string `json:"rail" validate:"required,oneof=lightning-channel stablecoin-evm"`
}

// Config is the process-wide recognized option set from spec §6. File-shaped
// fields (route_table, free_route_table, prefix_route_table) are read from a
// JSON document; secrets and per-deploy scalars are overlaid from the
// environment via envdecode so credentials never live in the JSON file.
type Config struct {
	PaymentNodeBaseURL       string        `json:"payment_node_base_url" env:"SLO_PAYMENT_NODE_BASE_URL,required" validate:"required,url"`
	PaymentNodeCredentialPath string       `json:"payment_node_credential_path" env:"SLO_PAYMENT_NODE_CREDENTIAL_PATH,required" validate:"required"`
	KeystoreDir              string        `json:"keystore_dir" env:"SLO_KEYSTORE_DIR,required" validate:"required"`
	RouteTable               []RouteConfig `json:"route_table" validate:"required,dive"`
	FreeRouteTable           []string      `json:"free_route_table"`
	PrefixRouteTable         []PrefixRouteConfig `json:"prefix_route_table" validate:"dive"`
	StablecoinRecipient      string        `json:"stablecoin_recipient_address" env:"SLO_STABLECOIN_RECIPIENT_ADDRESS" validate:"omitempty"`
	EVMRPCURL                string        `json:"evm_rpc_url" env:"SLO_EVM_RPC_URL" validate:"omitempty,url"`
	EVMRelayerKeyHex         string        `json:"-" env:"SLO_EVM_RELAYER_KEY_HEX" validate:"omitempty"`
	USDCContract             string        `json:"usdc_contract_address" validate:"omitempty"`
	StablecoinNetwork        string        `json:"stablecoin_network" validate:"omitempty"`
	SettlementFacilitatorURL string        `json:"settlement_facilitator_url" env:"SLO_SETTLEMENT_FACILITATOR_URL" validate:"omitempty,url"`
	OracleBaseURL            string        `json:"oracle_base_url" validate:"omitempty,url"`

	DepegTolerance       float64       `json:"depeg_tolerance"`
	GraceCooldown        time.Duration `json:"grace_cooldown"`
	BlockedThreshold     int           `json:"blocked_threshold"`
	BlockedWindow        time.Duration `json:"blocked_window"`
	FetchDeadline        time.Duration `json:"fetch_deadline"`
	AttestationSchedule  time.Duration `json:"attestation_schedule"`
	AnnouncementHorizon  time.Duration `json:"announcement_horizon"`
	DigitCount           int           `json:"digit_count"`

	LogLevel string `json:"log_level" env:"SLO_LOG_LEVEL"`
}

// defaults fills the timing knobs spec §6 gives defaults for, applied before
// JSON/env overlay so an explicit zero value in either source still wins.
func defaults() Config {
	return Config{
		DepegTolerance:      0.02,
		GraceCooldown:       10 * time.Minute,
		BlockedThreshold:    10,
		BlockedWindow:       7 * 24 * time.Hour,
		FetchDeadline:       5 * time.Second,
		AttestationSchedule: time.Hour,
		AnnouncementHorizon: 24 * time.Hour,
		DigitCount:          5,
		LogLevel:            "info",
	}
}

// strictConfig mirrors Config's JSON-facing fields; decoding into it with
// DisallowUnknownFields rejects unrecognized keys per spec §9's typed-config
// redesign flag, before decoding into the real Config.
type strictConfig Config

// Load reads jsonPath (route table, free routes, keystore paths, timing
// knobs), overlays a .env file at envPath if present, overlays process
// environment variables via envdecode, and validates the result. jsonPath
// unknown top-level keys are rejected.
func Load(jsonPath, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := defaults()

	f, err := os.Open(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", jsonPath, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	strict := strictConfig(cfg)
	if err := dec.Decode(&strict); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", jsonPath, err)
	}
	cfg = Config(strict)

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("config: env overlay: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Routes converts the JSON-shaped route table into domain.Route values,
// rejecting any entry with a malformed rail (already validator-checked, so
// this only guards programmatic callers that skip Load).
func (c *Config) Routes() ([]domain.Route, error) {
	out := make([]domain.Route, 0, len(c.RouteTable))
	for _, r := range c.RouteTable {
		rail := domain.Rail(r.Rail)
		if rail != domain.RailLightning && rail != domain.RailStablecoin {
			return nil, fmt.Errorf("config: route %s: unknown rail %q", r.Path, r.Rail)
		}
		out = append(out, domain.Route{
			Path:        r.Path,
			Backend:     r.Backend,
			PriceNative: r.PriceNative,
			Rail:        rail,
		})
	}
	return out, nil
}

// PrefixRoutes converts the JSON-shaped prefix route table into
// domain.PrefixRoute values.
func (c *Config) PrefixRoutes() ([]domain.PrefixRoute, error) {
	out := make([]domain.PrefixRoute, 0, len(c.PrefixRouteTable))
	for _, r := range c.PrefixRouteTable {
		rail := domain.Rail(r.Rail)
		if rail != domain.RailLightning && rail != domain.RailStablecoin {
			return nil, fmt.Errorf("config: prefix route %s: unknown rail %q", r.Prefix, r.Rail)
		}
		out = append(out, domain.PrefixRoute{
			Prefix:      r.Prefix,
			Backend:     r.Backend,
			PriceNative: r.PriceNative,
			Rail:        rail,
		})
	}
	return out, nil
}
