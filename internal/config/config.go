package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ThresholdMode string

const (
	ThresholdTotal          ThresholdMode = "total"
	ThresholdPerParticipant ThresholdMode = "per_participant"
)

type CodeStrategy string

const (
	CodeStrategyHMAC  CodeStrategy = "hmac"
	CodeStrategyFixed CodeStrategy = "fixed"
)

type Config struct {
	// Server
	Port               string
	Env                string
	LogLevel           string
	PublicURL          string
	StaticDir          string
	CORSAllowedOrigins []string

	// Session policy
	MatchPolicy     string
	TurnTaking      bool
	MinMessages     int
	MinMessagesMode ThresholdMode
	MaxMessages     int
	WaitingTimeout  time.Duration

	// Completion credentials
	CodeStrategy CodeStrategy
	CodeSecret   string
	CodePrefix   string
	CodeLength   int
	FixedCode    string

	// Chat log sinks
	ChatLogDir  string
	DatabaseURL string
	NATSURL     string
	NATSToken   string
	NATSSubject string

	// Scheduler
	ScheduleStore     string
	ScheduleFile      string
	RedisURL          string
	ScheduleRedisKey  string
	SchedulerInterval time.Duration
	ScheduleTolerance time.Duration
	ScheduleLookahead time.Duration
	ReservationWindow time.Duration
	ScheduleRateLimit int

	// Time slots
	Timezone          string
	TimeslotInterval  time.Duration
	TimeslotHorizon   time.Duration
	TimeslotStartHour int
	TimeslotEndHour   int

	// Notification delivery
	ProlificAPIURL   string
	ProlificAPIToken string
	ProlificStudyA   string
	ProlificStudyB   string
	InviteLinkA      string
	InviteLinkB      string

	// Admin
	AdminPasswordHash string
	JWTSecret         string
	JWTExpiration     time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	publicURL := getEnv("PUBLIC_URL", "http://localhost:3000")

	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		PublicURL:          publicURL,
		StaticDir:          getEnv("STATIC_DIR", "public"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		MatchPolicy:     strings.ToLower(getEnv("MATCH_POLICY", "open")),
		TurnTaking:      parseBool(getEnv("TURN_TAKING", "false")),
		MinMessages:     parseInt(getEnv("MIN_MESSAGES", "7"), 7),
		MinMessagesMode: ThresholdMode(strings.ToLower(getEnv("MIN_MESSAGES_MODE", string(ThresholdTotal)))),
		MaxMessages:     parseInt(getEnv("MAX_MESSAGES", "0"), 0),
		WaitingTimeout:  parseDuration(getEnv("WAITING_TIMEOUT", "0s"), 0),

		CodeStrategy: CodeStrategy(strings.ToLower(getEnv("COMPLETION_CODE_STRATEGY", string(CodeStrategyHMAC)))),
		CodeSecret:   getEnv("COMPLETION_SECRET", ""),
		CodePrefix:   getEnv("COMPLETION_CODE_PREFIX", "CHAT-"),
		CodeLength:   parseInt(getEnv("COMPLETION_CODE_LENGTH", "8"), 8),
		FixedCode:    getEnv("COMPLETION_FIXED_CODE", ""),

		ChatLogDir:  getEnv("CHAT_LOG_DIR", "chat_logs"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		NATSURL:     getEnv("NATS_URL", ""),
		NATSToken:   getEnv("NATS_TOKEN", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "dyad.session.completed"),

		ScheduleStore:     strings.ToLower(getEnv("SCHEDULE_STORE", "file")),
		ScheduleFile:      getEnv("SCHEDULE_FILE", "schedule.json"),
		RedisURL:          getEnv("REDIS_URL", ""),
		ScheduleRedisKey:  getEnv("SCHEDULE_REDIS_KEY", "dyad:schedule"),
		SchedulerInterval: parseDuration(getEnv("SCHEDULER_INTERVAL", "1m"), time.Minute),
		ScheduleTolerance: parseDuration(getEnv("SCHEDULE_TOLERANCE", "5m"), 5*time.Minute),
		ScheduleLookahead: parseDuration(getEnv("SCHEDULE_LOOKAHEAD", "5m"), 5*time.Minute),
		ReservationWindow: parseDuration(getEnv("RESERVATION_WINDOW", "30m"), 30*time.Minute),
		ScheduleRateLimit: parseInt(getEnv("SCHEDULE_RATE_LIMIT", "10"), 10),

		Timezone:          getEnv("TIMEZONE", "America/New_York"),
		TimeslotInterval:  parseDuration(getEnv("TIMESLOT_INTERVAL", "30m"), 30*time.Minute),
		TimeslotHorizon:   parseDuration(getEnv("TIMESLOT_HORIZON", "72h"), 72*time.Hour),
		TimeslotStartHour: parseInt(getEnv("TIMESLOT_START_HOUR", "9"), 9),
		TimeslotEndHour:   parseInt(getEnv("TIMESLOT_END_HOUR", "21"), 21),

		ProlificAPIURL:   getEnv("PROLIFIC_API_URL", "https://api.prolific.com/api/v1"),
		ProlificAPIToken: getEnv("PROLIFIC_API_TOKEN", ""),
		ProlificStudyA:   getEnv("PROLIFIC_STUDY_ID_A", ""),
		ProlificStudyB:   getEnv("PROLIFIC_STUDY_ID_B", ""),
		InviteLinkA:      getEnv("INVITE_LINK_A", publicURL),
		InviteLinkB:      getEnv("INVITE_LINK_B", publicURL),

		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTExpiration:     parseDuration(getEnv("JWT_EXPIRATION", "12h"), 12*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 열거형 값과 상호 의존 설정 검증
func (c *Config) Validate() error {
	switch c.MatchPolicy {
	case "open", "typed":
	default:
		return fmt.Errorf("invalid MATCH_POLICY %q: must be open or typed", c.MatchPolicy)
	}

	switch c.MinMessagesMode {
	case ThresholdTotal, ThresholdPerParticipant:
	default:
		return fmt.Errorf("invalid MIN_MESSAGES_MODE %q: must be total or per_participant", c.MinMessagesMode)
	}

	if c.MinMessages < 0 || c.MaxMessages < 0 {
		return fmt.Errorf("message thresholds must not be negative")
	}

	switch c.CodeStrategy {
	case CodeStrategyHMAC:
		if c.CodeSecret == "" {
			return fmt.Errorf("COMPLETION_SECRET is required for the hmac completion code strategy")
		}
		if c.CodeLength <= 0 || c.CodeLength > 64 {
			return fmt.Errorf("COMPLETION_CODE_LENGTH must be between 1 and 64")
		}
	case CodeStrategyFixed:
		if c.FixedCode == "" {
			return fmt.Errorf("COMPLETION_FIXED_CODE is required for the fixed completion code strategy")
		}
	default:
		return fmt.Errorf("invalid COMPLETION_CODE_STRATEGY %q: must be hmac or fixed", c.CodeStrategy)
	}

	switch c.ScheduleStore {
	case "file":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SCHEDULE_STORE=redis")
		}
	default:
		return fmt.Errorf("invalid SCHEDULE_STORE %q: must be file or redis", c.ScheduleStore)
	}

	if c.TimeslotStartHour < 0 || c.TimeslotEndHour > 24 || c.TimeslotStartHour >= c.TimeslotEndHour {
		return fmt.Errorf("invalid time slot hours %d-%d", c.TimeslotStartHour, c.TimeslotEndHour)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	if c.AdminPasswordHash != "" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}

	return nil
}

// Location 타임슬롯 표시용 타임존
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
