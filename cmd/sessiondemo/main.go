package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"

	"github.com/fyerfyer/fyer-session/crypto"
	"github.com/fyerfyer/fyer-session/logger"
	"github.com/fyerfyer/fyer-session/session"
	"github.com/fyerfyer/fyer-session/session/badgerstore"
	"github.com/fyerfyer/fyer-session/session/cookiepropagator"
	"github.com/fyerfyer/fyer-session/session/memstore"
	"github.com/fyerfyer/fyer-session/session/redisstore"
	"github.com/fyerfyer/fyer-session/session/sqlstore"
)

var (
	// 命令行参数
	addr      = flag.String("addr", ":8080", "Listen address")
	storeKind = flag.String("store", "memory", "Session store: stateless|memory|redis|badger|mysql")
	codecName = flag.String("codec", "", "Codec: mac-signing|authenticated-mac|authenticated-encryption")
	keys      = flag.String("keys", "", "Comma separated base64 keys, the first one signs new cookies")
	secret    = flag.String("secret", "", "Secret used to derive a key when -keys is empty")
	salt      = flag.String("salt", "", "Base64 salt used with -secret")
	maxAge    = flag.Duration("max-age", 24*time.Hour, "Cookie max age")
	secure    = flag.Bool("secure", false, "Set the Secure cookie attribute")
	redisAddr = flag.String("redis-addr", "localhost:6379", "Redis address")
	badgerDir = flag.String("badger-dir", "", "Badger directory (empty means in-memory)")
	dsn       = flag.String("dsn", "", "MySQL DSN for the mysql store")
	logLevel  = flag.String("log-level", "info", "Log level: debug|info|warn|error")
)

// usage 显示使用帮助信息
func usage() {
	fmt.Printf("Session demo server\n\n")
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n\n", os.Args[0])
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Printf("  %s -keys $(genkey | awk '/base64/ {print $2}')\n", os.Args[0])
	fmt.Printf("  %s -store stateless -codec authenticated-encryption -keys <key>\n", os.Args[0])
	fmt.Printf("  %s -store redis -redis-addr localhost:6379 -keys <new>,<old>\n", os.Args[0])
}

type config struct {
	storeKind string
	codec     string
	keys      []string
	secret    string
	salt      string
	maxAge    time.Duration
	secure    bool
	redisAddr string
	badgerDir string
	dsn       string
}

// openStore 按类型创建存储，返回的 closer 用于退出时释放资源
func openStore(ctx context.Context, cfg config) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.storeKind {
	case "stateless":
		return nil, noop, nil
	case "", "memory":
		return memstore.New(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		p := redisstore.NewPool(client, nil)
		closer := func() error {
			_ = p.Shutdown(context.Background())
			return client.Close()
		}
		return redisstore.NewWithPool(p), closer, nil
	case "badger":
		s, err := badgerstore.Open(cfg.badgerDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "mysql":
		s, err := sqlstore.OpenDSN(cfg.dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		s.StartCleanup(ctx, 10*time.Minute, func(err error) {
			logger.Warn("session cleanup failed", logger.FieldError(err))
		})
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.storeKind)
	}
}

// newManager 根据命令行配置创建会话管理器
func newManager(cfg config, store session.Store, l logger.Logger) (*session.Manager, error) {
	variant, err := crypto.ParseVariant(cfg.codec)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithLogger(l),
		session.WithCodec(variant),
		session.WithCookieOptions(
			cookiepropagator.WithMaxAge(cfg.maxAge),
			cookiepropagator.WithSecure(cfg.secure),
		),
		session.WithTracer(otel.GetTracerProvider().Tracer("fyer-session/store")),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	switch {
	case len(cfg.keys) > 0:
		opts = append(opts, session.WithEncodedKeys(cfg.keys...))
	case cfg.secret != "":
		var saltBytes []byte
		if cfg.salt != "" {
			if saltBytes, err = crypto.DecodeKey(cfg.salt); err != nil {
				return nil, fmt.Errorf("invalid salt: %w", err)
			}
		}
		opts = append(opts, session.WithSecret([]byte(cfg.secret), saltBytes))
	}
	return session.NewManager(opts...)
}

func splitKeys(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func main() {
	flag.Usage = usage
	flag.Parse()

	l := logger.NewLogger(logger.WithLevel(logger.ParseLevel(*logLevel)), logger.WithOutput(os.Stdout))
	logger.SetDefaultLogger(l)

	cfg := config{
		storeKind: *storeKind,
		codec:     *codecName,
		keys:      splitKeys(*keys),
		secret:    *secret,
		salt:      *salt,
		maxAge:    *maxAge,
		secure:    *secure,
		redisAddr: *redisAddr,
		badgerDir: *badgerDir,
		dsn:       *dsn,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	defer closeStore()

	m, err := newManager(cfg, store, l)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		flag.Usage()
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(m, l),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	l.Info("Server starting",
		logger.String("addr", *addr),
		logger.String("store", cfg.storeKind),
		logger.Bool("stateless", m.Stateless()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
