package Config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// OverlayEnv names an optional JSON5 file whose keys override the environment.
const OverlayEnv = "ANVIL_CONFIG"

// Config is the runtime configuration of the service.
type Config struct {
	ListenAddr       string `json:"listen_addr" validate:"required"`
	SheetID          string `json:"sheet_id" validate:"required"`
	QueryURL         string `json:"query_url" validate:"required,url"`
	WriteURL         string `json:"write_url" validate:"required,url"`
	UploadURL        string `json:"upload_url" validate:"required,url"`
	UploadFolderID   string `json:"upload_folder_id"`
	MaintenanceSheet string `json:"maintenance_sheet" validate:"required"`
	RepairSheet      string `json:"repair_sheet" validate:"required"`

	JWTSecret string `json:"jwt_secret" validate:"required,min=8"`

	DBDriver string `json:"db_driver" validate:"oneof=sqlite mysql"`
	DBDSN    string `json:"db_dsn" validate:"required"`

	SlackBotToken  string `json:"slack_bot_token"`
	SlackChannelID string `json:"slack_channel_id" validate:"required_with=SlackBotToken"`
	DigestSchedule string `json:"digest_schedule" validate:"required"`

	RequestTimeout    string `json:"request_timeout" validate:"required"`
	MaxImageDimension int    `json:"max_image_dimension" validate:"gte=0"`
	PageSize          int    `json:"page_size" validate:"gt=0,lte=5000"`
	LogLevel          string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// CronParser accepts six-field specs with a leading seconds field.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func defaults() Config {
	return Config{
		ListenAddr:       ":3001",
		MaintenanceSheet: "Maintenance Tasks",
		RepairSheet:      "Repair Tasks",
		DBDriver:         "sqlite",
		DBDSN:            "anvil.db",
		DigestSchedule:   "0 0 6 * * *",
		RequestTimeout:   "30s",
		PageSize:         500,
		LogLevel:         "info",
	}
}

// Load reads envFile (a missing file is fine), the process environment and
// the JSON5 overlay named by ANVIL_CONFIG, in that order, then validates.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := defaults()
	if err := cfg.fromEnv(); err != nil {
		return Config{}, err
	}

	if path := os.Getenv(OverlayEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config overlay: %w", err)
		}
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config overlay %s: %w", path, err)
		}
	}

	if cfg.WriteURL == "" {
		cfg.WriteURL = cfg.QueryURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = cfg.WriteURL
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fromEnv() error {
	strs := map[string]*string{
		"LISTEN_ADDR":       &c.ListenAddr,
		"SHEET_ID":          &c.SheetID,
		"QUERY_URL":         &c.QueryURL,
		"WRITE_URL":         &c.WriteURL,
		"UPLOAD_URL":        &c.UploadURL,
		"UPLOAD_FOLDER_ID":  &c.UploadFolderID,
		"MAINTENANCE_SHEET": &c.MaintenanceSheet,
		"REPAIR_SHEET":      &c.RepairSheet,
		"JWT_SECRET":        &c.JWTSecret,
		"DB_DRIVER":         &c.DBDriver,
		"DB_DSN":            &c.DBDSN,
		"SLACK_BOT_TOKEN":   &c.SlackBotToken,
		"SLACK_CHANNEL_ID":  &c.SlackChannelID,
		"DIGEST_SCHEDULE":   &c.DigestSchedule,
		"REQUEST_TIMEOUT":   &c.RequestTimeout,
		"LOG_LEVEL":         &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"MAX_IMAGE_DIMENSION": &c.MaxImageDimension,
		"PAGE_SIZE":           &c.PageSize,
	}
	for key, dst := range ints {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks struct tags, then the values tags cannot express.
func (c Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := CronParser.Parse(c.DigestSchedule); err != nil {
		return fmt.Errorf("digest schedule %q is invalid: %w", c.DigestSchedule, err)
	}
	if c.DBDriver == "mysql" {
		if _, err := mysql.ParseDSN(c.DBDSN); err != nil {
			return fmt.Errorf("mysql dsn is invalid: %w", err)
		}
	}
	return nil
}

// Timeout parses RequestTimeout.
func (c Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request timeout %q is invalid: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request timeout must be positive, got %s", d)
	}
	return d, nil
}

// SlackEnabled reports whether completion and digest messages can be posted.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}
