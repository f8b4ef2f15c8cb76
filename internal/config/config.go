package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"30"` // 导入时需要等待日历接口，比普通请求长
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
		CookieName string `env:"COOKIE_NAME" envDefault:"__campus_schedule_token"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
			Count    int    `env:"COUNT" envDefault:"50"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"` // 只允许该域名下的邮箱登录，例如 mavs.uta.edu
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD,required"`
		ConnectTimeout   int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"` // 单次 redis 操作的超时，单位秒
	} `envPrefix:"REDIS_"`
	Google struct {
		ClientID     string `env:"CLIENT_ID"`
		ClientSecret string `env:"CLIENT_SECRET"`
		RedirectURL  string `env:"REDIRECT_URL"`
		APIBaseURL   string `env:"API_BASE_URL" envDefault:"https://www.googleapis.com/calendar/v3"`
		StateTTL     int    `env:"STATE_TTL" envDefault:"600"` // 10 分钟
	} `envPrefix:"GOOGLE_"`
	Import struct {
		Timezone     string `env:"TIMEZONE" envDefault:"America/Chicago"`
		WindowMonths int    `env:"WINDOW_MONTHS" envDefault:"4"`
		MaxResults   int    `env:"MAX_RESULTS" envDefault:"2500"`
		SessionTTL   int    `env:"SESSION_TTL" envDefault:"1800"` // 30 分钟
		FetchTimeout int    `env:"FETCH_TIMEOUT" envDefault:"20"`
		// 本地联调时允许订阅内网地址的 ICS，线上必须关闭
		AllowPrivateFeeds bool `env:"ALLOW_PRIVATE_FEEDS" envDefault:"false"`
	} `envPrefix:"IMPORT_"`
}

// Location 导入时换算星期和时间所用的时区
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Import.Timezone)
}

func LoadConfig() (*Config, error) {
	// 本地开发时从 .env 读取，部署环境直接使用环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}
