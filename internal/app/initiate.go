package app

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	libOTP "github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/idgate/internal/account"
	"github.com/shandysiswandi/idgate/internal/account/outbound/db"
	"github.com/shandysiswandi/idgate/internal/pkg/clock"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/idgate/internal/pkg/hash"
	"github.com/shandysiswandi/idgate/internal/pkg/idtoken"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/messaging"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
	"github.com/shandysiswandi/idgate/internal/pkg/otp"
	"github.com/shandysiswandi/idgate/internal/pkg/replay"
	"github.com/shandysiswandi/idgate/internal/pkg/router"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	replayDriverMemory = "memory"
	replayDriverRedis  = "redis"

	idtokenDriverHMAC = "hmac"
	idtokenDriverJWKS = "jwks"

	mfaKeyLen = 32

	pubsubScope = "https://www.googleapis.com/auth/pubsub"
)

// defaultMaskFields are always masked in logs on top of instrument.log_mask_fields.
var defaultMaskFields = []string{"secret", "token", "code", "authorization", "provisioning_uri", "qr_code"}

func (a *App) initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       lo.Union(defaultMaskFields, a.config.GetArray("instrument.log_mask_fields")),
		LogFormat:        a.config.GetString("instrument.log_format"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(int64(a.config.GetInt("app.node_id")))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	a.totp = otp.NewTOTP(
		a.config.GetString("mfa.totp.issuer"),
		a.config.GetUint("mfa.totp.period"),
		a.config.GetUint("mfa.totp.skew"),
		libOTP.DigitsSix,
	)

	rawKey := a.config.GetBinary("mfa.secret")
	if len(rawKey) == 0 && a.storageDriver() == account.StorageMemory {
		// memory storage keeps nothing sealed across restarts
		rawKey = make([]byte, mfaKeyLen)
		if _, err := rand.Read(rawKey); err != nil {
			slog.Error("failed to generate mfa key", "error", err)
			os.Exit(1)
		}
		slog.Warn("mfa.secret is empty, using an ephemeral key")
	}
	if len(rawKey) != mfaKeyLen {
		slog.Error("failed to init mfacrypto, secret must be 32 bytes (AES-256)", "length", len(rawKey))
		os.Exit(1)
	}

	var keys mfa.KeyProvider = mfa.StaticKeyProvider{KeyBytes: rawKey}
	if salt := a.config.GetString("mfa.hkdf_salt"); salt != "" {
		keys = mfa.NewHKDFKeyProvider(rawKey, []byte(salt))
	}
	a.mfaEncryptor = mfa.NewAESGCMEncryptor(keys)
}

func (a *App) storageDriver() string {
	driver := strings.ToLower(strings.TrimSpace(a.config.GetString("storage.driver")))
	if driver == "" {
		return account.StorageMemory
	}
	return driver
}

// replayDriver falls back to memory while replay protection is off.
func (a *App) replayDriver() string {
	if !a.config.GetBool("modules.account.totp.replay_protection") {
		return replayDriverMemory
	}

	driver := strings.ToLower(strings.TrimSpace(a.config.GetString("replay.driver")))
	if driver == "" {
		return replayDriverMemory
	}
	return driver
}

// ping retries fn with a capped fibonacci backoff until it succeeds or
// app.startup.max_retries is exhausted.
func (a *App) ping(name string, fn func(ctx context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(uint64(a.config.GetUint("app.startup.max_retries")), b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := fn(pingCtx); err != nil {
			slog.WarnContext(ctx, "dependency not ready", "name", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (a *App) initDatabase() {
	if a.storageDriver() != account.StoragePostgres {
		return
	}

	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	if err := a.ping("database", pool.Ping); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("database.migrate") {
		if err := db.RunMigrations(pool); err != nil {
			slog.Error("failed to run DB migrations", "error", err)
			os.Exit(1)
		}
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	if a.storageDriver() != account.StorageRedis && a.replayDriver() != replayDriverRedis {
		return
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	if err := a.ping("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
}

func (a *App) initVerifier() {
	issuer := a.config.GetString("idtoken.issuer")
	audience := a.config.GetString("idtoken.audience")

	switch driver := strings.ToLower(strings.TrimSpace(a.config.GetString("idtoken.driver"))); driver {
	case idtokenDriverJWKS:
		jwks, err := idtoken.NewJWKS(a.ctx, idtoken.JWKSConfig{
			URL:             a.config.GetString("idtoken.jwks.url"),
			Issuer:          issuer,
			Audience:        audience,
			RefreshInterval: a.config.GetMinute("idtoken.jwks.refresh_interval_minutes"),
		})
		if err != nil {
			slog.Error("failed to init identity token verifier", "driver", driver, "error", err)
			os.Exit(1)
		}
		a.jwks = jwks
		a.verifier = jwks
	case "", idtokenDriverHMAC:
		verifier, err := idtoken.NewHMAC(idtoken.HMACConfig{
			Secret:   []byte(a.config.GetString("idtoken.hmac_secret")),
			Issuer:   issuer,
			Audience: audience,
			Clock:    a.clock,
		})
		if err != nil {
			slog.Error("failed to init identity token verifier", "driver", driver, "error", err)
			os.Exit(1)
		}
		a.verifier = verifier
	default:
		slog.Error("failed to init identity token verifier, unknown driver", "driver", driver)
		os.Exit(1)
	}
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")

	var pubsubOptions []option.ClientOption
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		pubsubOptions = append(pubsubOptions, option.WithEndpoint(v))
	}
	if a.config.GetBool("messaging.pubsub.without_auth") {
		pubsubOptions = append(pubsubOptions, option.WithoutAuthentication())
	}
	if v := a.config.GetBinary("messaging.pubsub.credentials_json"); len(v) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, v, pubsubScope)
		if err != nil {
			slog.Error("failed to parse pubsub credentials json", "error", err)
			os.Exit(1)
		}
		pubsubOptions = append(pubsubOptions, option.WithCredentials(creds))
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr: a.config.GetString("messaging.nsq.producer_addr"),
			ProducerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.DialTimeout = a.config.GetSecond("messaging.nsq.dial_timeout_seconds")
				cfg.ReadTimeout = a.config.GetSecond("messaging.nsq.read_timeout_seconds")
				cfg.WriteTimeout = a.config.GetSecond("messaging.nsq.write_timeout_seconds")
				return cfg
			}(),
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: pubsubOptions,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initReplay() {
	switch driver := a.replayDriver(); driver {
	case replayDriverMemory:
		a.replay = replay.NewMemory(a.clock)
	case replayDriverRedis:
		a.replay = replay.NewRedis(a.cacheConn, a.config.GetString("redis.key_prefix"))
	default:
		slog.Error("failed to init replay guard, unknown driver", "driver", driver)
		os.Exit(1)
	}
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: lo.Uniq(a.config.GetArray("app.server.cors")),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				return a.messaging.Close()
			},
		},
		{
			name: "JWKS",
			fn: func(context.Context) error {
				if a.jwks != nil {
					return a.jwks.Close()
				}

				return nil
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn != nil {
					return a.cacheConn.Close()
				}

				return nil
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				if a.dbConn != nil {
					a.dbConn.Close()
				}

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
