package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	Auth     AuthConfig
	QR       QRConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver        string // sqlite or postgres
	DSN           string
	MigrationsDir string
	AutoMigrate   bool
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
}

type RedisConfig struct {
	Addr     string
	Enabled  bool
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	RaffleCreated   string
	TicketPurchased string
	RaffleClosed    string
	TicketClosed    string
	WinnersDrawn    string
}

// All returns every configured topic, in a stable order.
func (t TopicConfig) All() []string {
	return []string{t.RaffleCreated, t.TicketPurchased, t.RaffleClosed, t.TicketClosed, t.WinnersDrawn}
}

type LedgerConfig struct {
	Backend   string // memory or sql
	ProgramID string
	// MaxAirdrop caps one faucet transfer, in lamports.
	MaxAirdrop uint64
}

type AuthConfig struct {
	JWTSecret  string
	OIDCIssuer string
}

type QRConfig struct {
	SecretKey string
}

// DefaultProgramID is the raffle program address used when RAFFLE_PROGRAM_ID is unset.
const DefaultProgramID = "4ZEPy6oo8oHzbU6bkiY2m8pLb7aNzyzZaMpAZ6CeZQQf"

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "sqlite"),
			DSN:           getEnv("DB_DSN", "file:raffles.db?cache=shared"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			CacheTTL: getEnvDuration("TICKET_CACHE_TTL", 60*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "raffle-node-group"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				RaffleCreated:   getEnv("KAFKA_TOPIC_RAFFLE_CREATED", "raffles.created"),
				TicketPurchased: getEnv("KAFKA_TOPIC_TICKET_PURCHASED", "raffles.ticket_purchased"),
				RaffleClosed:    getEnv("KAFKA_TOPIC_RAFFLE_CLOSED", "raffles.closed"),
				TicketClosed:    getEnv("KAFKA_TOPIC_TICKET_CLOSED", "raffles.ticket_closed"),
				WinnersDrawn:    getEnv("KAFKA_TOPIC_WINNERS_DRAWN", "raffles.drawn"),
			},
		},
		Ledger: LedgerConfig{
			Backend:    getEnv("LEDGER_BACKEND", "sql"),
			ProgramID:  getEnv("RAFFLE_PROGRAM_ID", DefaultProgramID),
			MaxAirdrop: uint64(getEnvInt("MAX_AIRDROP_LAMPORTS", 100_000_000_000)),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("ADMIN_JWT_SECRET", ""),
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		QR: QRConfig{
			SecretKey: getEnv("QR_SECRET_KEY", "raffle-ticket-qr"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
