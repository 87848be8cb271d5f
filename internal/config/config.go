package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shaiso/Stepflow/internal/llm"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
)

const (
	// AppName — имя приложения, используется для поиска файла конфигурации.
	AppName = "stepflow"

	// EnvPrefix — префикс переменных окружения (STEPFLOW_SERVER_PORT и т.д.).
	EnvPrefix = "STEPFLOW"

	// ConfigFileEnv — переменная окружения с путём к файлу конфигурации.
	ConfigFileEnv = "STEPFLOW_CONFIG"
)

// Config — конфигурация всех бинарников Stepflow.
type Config struct {
	Server struct {
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Database struct {
		URL      string `mapstructure:"url"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	RabbitMQ struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"rabbitmq"`

	LLM struct {
		BaseURL   string        `mapstructure:"base_url"`
		Model     string        `mapstructure:"model"`
		Token     string        `mapstructure:"token"`
		MaxTokens int           `mapstructure:"max_tokens"`
		Timeout   time.Duration `mapstructure:"timeout"`
	} `mapstructure:"llm"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Runner struct {
		StepTimeout  time.Duration `mapstructure:"step_timeout"`
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	} `mapstructure:"runner"`

	Worker struct {
		Port         int           `mapstructure:"port"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		BatchSize    int           `mapstructure:"batch_size"`
		Prefetch     int           `mapstructure:"prefetch"`
	} `mapstructure:"worker"`

	Scheduler struct {
		Port      int           `mapstructure:"port"`
		Interval  time.Duration `mapstructure:"interval"`
		BatchSize int           `mapstructure:"batch_size"`
		LockKey   int64         `mapstructure:"lock_key"`
	} `mapstructure:"scheduler"`

	// File — путь к прочитанному файлу конфигурации (пусто, если файла нет).
	File string `mapstructure:"-"`
}

// LLMConfig возвращает параметры клиента chat completion API.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		BaseURL:   c.LLM.BaseURL,
		Model:     c.LLM.Model,
		Token:     c.LLM.Token,
		MaxTokens: c.LLM.MaxTokens,
		Timeout:   c.LLM.Timeout,
	}
}

// Addr возвращает адрес вида ":port".
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}

// legacyEnv — имена переменных окружения, принятые до появления префикса.
// Они читаются наравне с STEPFLOW_*.
var legacyEnv = map[string]string{
	"server.port":    "PORT",
	"database.url":   "DB_URL",
	"rabbitmq.url":   "RABBITMQ_URL",
	"llm.token":      "HF_API_TOKEN",
	"log.level":      "LOG_LEVEL",
	"log.format":     "LOG_FORMAT",
	"worker.port":    "WORKER_PORT",
	"scheduler.port": "SCHED_PORT",
}

// Load читает конфигурацию: значения по умолчанию, затем файл
// (cfgFile, STEPFLOW_CONFIG или ./stepflow.yaml), затем переменные окружения.
// Отсутствие файла не ошибка, если путь не задан явно.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile == "" {
		cfgFile = os.Getenv(ConfigFileEnv)
	}
	explicit := cfgFile != ""
	if explicit {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/" + AppName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var file string
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		file = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, без которых сервисы не стартуют.
// Отсутствие LLM токена допустимо: шаги LLM будут падать при выполнении.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Runner.StepTimeout <= 0 {
		errs = append(errs, errors.New("runner.step_timeout must be positive"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if c.Worker.PollInterval <= 0 {
		errs = append(errs, errors.New("worker.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", repo.DefaultDSN)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("rabbitmq.url", mq.DefaultURL())

	v.SetDefault("llm.base_url", llm.DefaultBaseURL)
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")

	v.SetDefault("runner.step_timeout", 2*time.Minute)
	v.SetDefault("runner.fetch_timeout", 30*time.Second)

	v.SetDefault("worker.port", 8082)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.prefetch", 5)

	v.SetDefault("scheduler.port", 8081)
	v.SetDefault("scheduler.interval", time.Second)
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("scheduler.lock_key", int64(0x5354_4550))
}
