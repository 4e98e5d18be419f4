package topup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alovak/topup-playground/internal/envelope"
	"github.com/alovak/topup-playground/internal/transport"
)

// Config is a configuration for the topup application
type Config struct {
	HTTPAddr string
	// Endpoint is the URL every transaction is posted to.
	Endpoint   string
	SOAPAction string
	// Primary bounds the original send, Reversal the compensating one.
	Primary  transport.Policy
	Reversal transport.Policy
	// ReversalProviders are the providers eligible for automatic reversal.
	ReversalProviders []string
	// Classifier selects how response bodies are judged: ClassifierMarker
	// or ClassifierXML.
	Classifier string
	// Defaults fills empty caller fields at the API/CLI layer.
	Defaults RequestDefaults
}

// RequestDefaults are the static terminal credentials used when a caller
// leaves them out.
type RequestDefaults struct {
	TransactionType string
	Service         string
	Cashier         string
	CashierKey      string
	TerminalID      string
	MerchantID      string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:   "localhost:9090",
		Endpoint:   "http://201.234.207.210/wsrecargas/service.asmx",
		SOAPAction: envelope.SOAPAction,
		Primary: transport.Policy{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			Delay:      transport.DefaultRetryDelay,
		},
		Reversal: transport.Policy{
			Timeout:    15 * time.Second,
			MaxRetries: 1,
			Delay:      transport.DefaultRetryDelay,
		},
		ReversalProviders: append([]string(nil), DefaultReversalProviders...),
		Classifier:        ClassifierMarker,
		Defaults: RequestDefaults{
			TransactionType: "02",
			Service:         "02",
			Cashier:         "5555",
			CashierKey:      "5555",
			TerminalID:      "10957975",
			MerchantID:      "015912000100004",
		},
	}
}

// ConfigFromEnv starts from DefaultConfig and applies TOPUP_* variables.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPAddr = getenv("TOPUP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Endpoint = getenv("TOPUP_ENDPOINT", cfg.Endpoint)
	cfg.SOAPAction = getenv("TOPUP_SOAP_ACTION", cfg.SOAPAction)
	if v := os.Getenv("TOPUP_REVERSAL_PROVIDERS"); v != "" {
		cfg.ReversalProviders = strings.Split(v, ",")
	}

	cfg.Classifier = strings.ToLower(getenv("TOPUP_CLASSIFIER", cfg.Classifier))
	if _, err := NewClassifier(cfg.Classifier); err != nil {
		return nil, fmt.Errorf("parsing TOPUP_CLASSIFIER: %w", err)
	}

	var err error
	if cfg.Primary.Timeout, err = timeoutEnv("TOPUP_PRIMARY_TIMEOUT", cfg.Primary.Timeout); err != nil {
		return nil, err
	}
	if cfg.Primary.MaxRetries, err = intEnv("TOPUP_PRIMARY_RETRIES", cfg.Primary.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.Reversal.Timeout, err = timeoutEnv("TOPUP_REVERSAL_TIMEOUT", cfg.Reversal.Timeout); err != nil {
		return nil, err
	}
	if cfg.Reversal.MaxRetries, err = intEnv("TOPUP_REVERSAL_RETRIES", cfg.Reversal.MaxRetries); err != nil {
		return nil, err
	}
	delay, err := durationEnv("TOPUP_RETRY_DELAY", cfg.Primary.Delay)
	if err != nil {
		return nil, err
	}
	cfg.Primary.Delay, cfg.Reversal.Delay = delay, delay

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", k, err)
	}
	return d, nil
}

func timeoutEnv(k string, def time.Duration) (time.Duration, error) {
	d, err := durationEnv(k, def)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("parsing %s: timeout must be positive, got %s", k, d)
	}
	return d, nil
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parsing %s: want a non-negative integer, got %q", k, v)
	}
	return n, nil
}
