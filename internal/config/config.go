package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/example/visaslot/internal/domain/visa"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	// live slot backend
	APIBase          string
	Countries        []visa.CountryCode
	PollInterval     time.Duration
	SlotFetchTimeout time.Duration

	// payment
	RazorpayKeyID      string
	RazorpayKeySecret  string
	RazorpayAPIBase    string
	MerchantName       string
	MerchantImage      string
	ThemeColor         string
	PrefillName        string
	PrefillContact     string
	PaymentAmountMinor int64
	PaymentCurrency    string
	PaymentTimeout     time.Duration

	ReservationTimeout time.Duration
	BookingRetention   time.Duration

	CookieHashKey  []byte
	CookieBlockKey []byte

	ProfilePath string
	ProfileKey  []byte // optional, 32 bytes

	DatabaseURL string // optional; enables the reconciliation ledger

	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv loads the server configuration; cookie keys are mandatory.
func FromEnv() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	if cfg.CookieHashKey == nil || cfg.CookieBlockKey == nil {
		return Config{}, fmt.Errorf("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required (base64, see `visaslot keys`)")
	}
	return cfg, nil
}

// Load reads the environment without requiring the web secrets. The CLI
// tools that never serve HTTP use it.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr: env.GetString("LISTEN_ADDR", ":8080"),
		LogLevel:   env.GetString("LOG_LEVEL", "info"),

		APIBase:          strings.TrimRight(env.GetString("VISA_API_BASE", "https://api.visalivesecure.com"), "/"),
		Countries:        visa.ParseCountries(env.GetString("SLOT_COUNTRIES", "USA,Canada,China")),
		PollInterval:     env.GetDuration("SLOT_POLL_SECONDS", 30, time.Second),
		SlotFetchTimeout: env.GetDuration("SLOT_FETCH_TIMEOUT_SECONDS", 10, time.Second),

		RazorpayKeyID:      env.GetString("RAZORPAY_KEY_ID", "rzp_test_XXXXXXXX"),
		RazorpayKeySecret:  env.GetString("RAZORPAY_KEY_SECRET", ""),
		RazorpayAPIBase:    env.GetString("RAZORPAY_API_BASE", "https://api.razorpay.com/v1"),
		MerchantName:       env.GetString("MERCHANT_NAME", "VisaLive Secure"),
		MerchantImage:      env.GetString("MERCHANT_IMAGE", "https://visalivesecure.com/logo.png"),
		ThemeColor:         env.GetString("CHECKOUT_THEME_COLOR", "#007bff"),
		PrefillName:        env.GetString("CHECKOUT_PREFILL_NAME", "Customer Name"),
		PrefillContact:     env.GetString("CHECKOUT_PREFILL_CONTACT", "9999999999"),
		PaymentAmountMinor: int64(env.GetInt("PAYMENT_AMOUNT_MINOR", 99*100)),
		PaymentCurrency:    env.GetString("PAYMENT_CURRENCY", "INR"),
		PaymentTimeout:     env.GetDuration("PAYMENT_TIMEOUT_SECONDS", 600, time.Second),

		ReservationTimeout: env.GetDuration("RESERVATION_TIMEOUT_SECONDS", 20, time.Second),
		BookingRetention:   env.GetDuration("BOOKING_RETENTION_MINUTES", 10, time.Minute),

		ProfilePath: env.GetString("PROFILE_PATH", "visaslot-profile.json"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		KafkaTopic:  env.GetString("KAFKA_TOPIC", "visaslot.bookings"),
	}
	cfg.KafkaBrokers = splitCSV(os.Getenv("KAFKA_BROKERS"))

	if len(cfg.Countries) == 0 {
		return Config{}, fmt.Errorf("SLOT_COUNTRIES must list at least one country")
	}
	if cfg.PollInterval < time.Second {
		return Config{}, fmt.Errorf("invalid SLOT_POLL_SECONDS")
	}
	if cfg.PaymentAmountMinor <= 0 {
		return Config{}, fmt.Errorf("invalid PAYMENT_AMOUNT_MINOR")
	}
	if cfg.PaymentTimeout <= 0 || cfg.ReservationTimeout <= 0 {
		return Config{}, fmt.Errorf("PAYMENT_TIMEOUT_SECONDS and RESERVATION_TIMEOUT_SECONDS must be > 0")
	}

	var err error
	if hashKey := os.Getenv("COOKIE_HASH_KEY"); hashKey != "" {
		if cfg.CookieHashKey, err = decodeB64(hashKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
		}
	}
	if blockKey := os.Getenv("COOKIE_BLOCK_KEY"); blockKey != "" {
		if cfg.CookieBlockKey, err = decodeB64(blockKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
		}
	}
	if pk := os.Getenv("PROFILE_KEY"); pk != "" {
		if cfg.ProfileKey, err = decodeB64(pk); err != nil {
			return Config{}, fmt.Errorf("PROFILE_KEY: %w", err)
		}
		if len(cfg.ProfileKey) != 32 {
			return Config{}, fmt.Errorf("PROFILE_KEY must decode to 32 bytes (got %d)", len(cfg.ProfileKey))
		}
	}
	return cfg, nil
}

// decodeB64 accepts a literal value or a path to a file holding it (k8s secret mounts).
func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
