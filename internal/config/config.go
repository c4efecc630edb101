package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseDSN string

	KafkaBroker string
	KafkaTopic  string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	CalendarBaseURL string
	CalendarAPIKey  string
	PaymentBaseURL  string
	PaymentAPIKey   string

	TimezoneOffsetHours   int
	LookaheadDays         int
	HorizonDays           int
	AnchorOffsetDays      int
	ApplicationFeePercent float64

	ReminderCronSpec string
	RollCronSpec     string
}

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}
}

func New() *Config {
	return &Config{
		Port:        getEnv("SCHED_PORT", ":8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=localhost user=talktera password=talktera dbname=scheduling port=5432 sslmode=disable"),

		KafkaBroker: getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "appointment_events"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		CalendarBaseURL: getEnv("CALENDAR_BASE_URL", "http://localhost:8091"),
		CalendarAPIKey:  getEnv("CALENDAR_API_KEY", ""),
		PaymentBaseURL:  getEnv("PAYMENT_BASE_URL", "http://localhost:8092"),
		PaymentAPIKey:   getEnv("PAYMENT_API_KEY", ""),

		TimezoneOffsetHours:   getEnvInt("SCHED_TZ_OFFSET_HOURS", -3),
		LookaheadDays:         getEnvInt("SCHED_LOOKAHEAD_DAYS", 30),
		HorizonDays:           getEnvInt("SCHED_HORIZON_DAYS", 31),
		AnchorOffsetDays:      getEnvInt("SCHED_ANCHOR_OFFSET_DAYS", 1),
		ApplicationFeePercent: getEnvFloat("APPLICATION_FEE_PERCENT", 10),

		ReminderCronSpec: getEnv("REMINDER_CRON", "0 8 * * *"),
		RollCronSpec:     getEnv("ROLL_CRON", "30 3 * * *"),
	}
}

// Location is the provider's canonical time zone used for all slot
// arithmetic.
func (c *Config) Location() *time.Location {
	return time.FixedZone("provider", c.TimezoneOffsetHours*60*60)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatalf("Invalid number for %s: %v", key, err)
	}
	return parsed
}
