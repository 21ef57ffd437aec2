package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Realtime   RealtimeConfig
	Booking    BookingConfig
	Cloudinary CloudinaryConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RealtimeConfig selects the change-feed backend: "memory" for a single
// instance, "redis" when several instances share one database.
type RealtimeConfig struct {
	Backend string
}

type BookingConfig struct {
	Timezone          string
	DraftTTLMinutes   int
	ReminderLeadHours int
}

type CloudinaryConfig struct {
	URL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

var AppConfig *Config

func Load() {
	AppConfig = &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DB_URL", ""),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Realtime: RealtimeConfig{
			Backend: getEnv("REALTIME_BACKEND", "memory"),
		},
		Booking: BookingConfig{
			Timezone:          getEnv("BOOKING_TIMEZONE", "Asia/Seoul"),
			DraftTTLMinutes:   getEnvAsInt("DRAFT_TTL_MINUTES", 60),
			ReminderLeadHours: getEnvAsInt("REMINDER_LEAD_HOURS", 24),
		},
		Cloudinary: CloudinaryConfig{
			URL: getEnv("CLOUDINARY_URL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}
}

// Location returns the time zone reservations are scheduled in.
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		log.Printf("⚠️ Unknown BOOKING_TIMEZONE %q, falling back to UTC: %v", b.Timezone, err)
		return time.UTC
	}
	return loc
}

func (b BookingConfig) DraftTTL() time.Duration {
	return time.Duration(b.DraftTTLMinutes) * time.Minute
}

func (b BookingConfig) ReminderLead() time.Duration {
	return time.Duration(b.ReminderLeadHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
