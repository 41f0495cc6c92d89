package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	filefetch "github.com/bnema/geppetto/internal/adapters/fetch/file"
	"github.com/bnema/geppetto/internal/adapters/fetch/router"
	s3fetch "github.com/bnema/geppetto/internal/adapters/fetch/s3"
	webfetch "github.com/bnema/geppetto/internal/adapters/fetch/web"
	"github.com/bnema/geppetto/internal/adapters/interpreter/document"
	"github.com/bnema/geppetto/internal/adapters/query/neo4j"
	"github.com/bnema/geppetto/internal/adapters/query/redisource"
	"github.com/bnema/geppetto/internal/adapters/query/sqlsource"
	"github.com/bnema/geppetto/internal/adapters/render/tree"
	tomlrepo "github.com/bnema/geppetto/internal/adapters/repo/toml"
	chainstore "github.com/bnema/geppetto/internal/adapters/secrets/chain"
	"github.com/bnema/geppetto/internal/application"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type app struct {
	config      *viper.Viper
	logger      *zap.Logger
	logLevel    zap.AtomicLevel
	models      *application.ModelService
	queries     *application.QueryService
	catalog     *application.CatalogService
	secretStore ports.SecretStore
	common      *domain.Library

	modelRenderer   func(*domain.Model, tree.RenderOptions) (string, error)
	resultsRenderer func(*domain.QueryResults) (string, error)
	queryTimeout    time.Duration

	closers []io.Closer
}

func wireApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logLevel := zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := newLogger(logLevel)
	if err != nil {
		return nil, err
	}

	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire catalog repository: %w", err)
	}

	secretStore, err := chainstore.NewEnvFirst(cfg.GetString("secrets.backend"), cfg.GetString("secrets.dir"))
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	fetcher, err := wireFetcher(cfg)
	if err != nil {
		return nil, err
	}

	interpreter, err := document.New(fetcher, cfg.GetInt("fetch.cache_size"), logger.Named("interpreter"))
	if err != nil {
		return nil, fmt.Errorf("wire model interpreter: %w", err)
	}

	common := domain.NewCommonLibrary()
	access, err := application.NewModelAccess(common, interpreter)
	if err != nil {
		return nil, fmt.Errorf("wire model access: %w", err)
	}

	resolver := application.NewResolver(access, logger.Named("resolver"))
	queries := application.NewQueryService(access, secretStore, ports.SystemClock{}, logger.Named("query"))

	sqlProcessor := &sqlsource.Processor{Logger: logger.Named("sql")}
	redisProcessor := &redisource.Processor{Logger: logger.Named("redis")}
	queries.Register(string(domain.DataSourceNeo4j), &neo4j.Processor{
		HTTPClient:     http.DefaultClient,
		RequestTimeout: cfg.GetDuration("query.timeout"),
		Logger:         logger.Named("neo4j"),
	})
	queries.Register(string(domain.DataSourceSQL), sqlProcessor)
	queries.Register(string(domain.DataSourceRedis), redisProcessor)

	return &app{
		config:          cfg,
		logger:          logger,
		logLevel:        logLevel,
		models:          application.NewModelService(access, resolver, logger.Named("model")),
		queries:         queries,
		catalog:         application.NewCatalogService(repo, repo, secretStore),
		secretStore:     secretStore,
		common:          common,
		modelRenderer:   tree.Render,
		resultsRenderer: tree.RenderResults,
		queryTimeout:    cfg.GetDuration("query.timeout"),
		closers:         []io.Closer{sqlProcessor, redisProcessor},
	}, nil
}

// wireFetcher routes file paths to the local fetcher, http(s) to the web
// fetcher and, when s3.endpoint is configured, s3:// urls to object storage.
func wireFetcher(cfg *viper.Viper) (*router.Router, error) {
	r := router.New().
		Handle(filefetch.New(cfg.GetString("fetch.root")), "file").
		Handle(&webfetch.Fetcher{
			HTTPClient:     http.DefaultClient,
			RequestTimeout: cfg.GetDuration("fetch.timeout"),
		}, "http", "https")

	endpoint := strings.TrimSpace(cfg.GetString("s3.endpoint"))
	if endpoint == "" {
		return r, nil
	}

	objects, err := s3fetch.New(s3fetch.Config{
		Endpoint:  endpoint,
		Region:    cfg.GetString("s3.region"),
		AccessKey: cfg.GetString("s3.access_key"),
		SecretKey: cfg.GetString("s3.secret_key"),
		UseSSL:    cfg.GetBool("s3.use_ssl"),
	})
	if err != nil {
		return nil, fmt.Errorf("wire s3 fetcher: %w", err)
	}
	return r.Handle(objects, "s3"), nil
}

func (a *app) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
