package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName        = "config"
	configType        = "toml"
	catalogPathKey    = "catalog.path"
	catalogFileMode   = 0o600
	catalogDirMode    = 0o700
	catalogConfigDir  = ".geppetto"
	catalogConfigFile = "catalog.toml"
	tempFilePattern   = ".catalog-*.toml.tmp"
)

// Repository persists data sources and saved queries in one TOML catalog.
// Passwords never reach the file; only secret refs do.
type Repository struct {
	catalogPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var (
	_ ports.DataSourceRepository = (*Repository)(nil)
	_ ports.QueryRepository      = (*Repository)(nil)
)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, catalogConfigDir, catalogConfigFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, catalogConfigDir))
	cfg.SetDefault(catalogPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	catalogPath := cfg.GetString(catalogPathKey)
	if catalogPath == "" {
		return nil, errors.New("catalog path is empty")
	}
	catalogPath, err = normalizeCatalogPath(catalogPath)
	if err != nil {
		return nil, err
	}

	return &Repository{catalogPath: catalogPath, mu: lockForPath(catalogPath)}, nil
}

// Path is the catalog file location.
func (r *Repository) Path() string {
	return r.catalogPath
}

func (r *Repository) Save(ctx context.Context, source domain.DataSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := source.Validate(); err != nil {
		return err
	}

	return r.update(ctx, func(file *fileSchema) {
		encoded := toDataSourceSchema(source)
		for i := range file.DataSources {
			if file.DataSources[i].ID == encoded.ID {
				file.DataSources[i] = encoded
				return
			}
		}
		file.DataSources = append(file.DataSources, encoded)
	})
}

func (r *Repository) GetByID(ctx context.Context, id domain.DataSourceID) (domain.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return domain.DataSource{}, err
	}

	file, err := r.read()
	if err != nil {
		return domain.DataSource{}, err
	}

	for _, entry := range file.DataSources {
		if entry.ID == string(id) {
			return fromDataSourceSchema(entry), nil
		}
	}

	return domain.DataSource{}, domain.ErrDataSourceNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := r.read()
	if err != nil {
		return nil, err
	}

	sources := make([]domain.DataSource, 0, len(file.DataSources))
	for _, entry := range file.DataSources {
		sources = append(sources, fromDataSourceSchema(entry))
	}

	return sources, nil
}

func (r *Repository) SaveQuery(ctx context.Context, query domain.ProcessQuery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := query.Validate(); err != nil {
		return err
	}

	return r.update(ctx, func(file *fileSchema) {
		encoded := toQuerySchema(query)
		for i := range file.Queries {
			if file.Queries[i].ID == encoded.ID {
				file.Queries[i] = encoded
				return
			}
		}
		file.Queries = append(file.Queries, encoded)
	})
}

func (r *Repository) GetQuery(ctx context.Context, id domain.QueryID) (domain.ProcessQuery, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProcessQuery{}, err
	}

	file, err := r.read()
	if err != nil {
		return domain.ProcessQuery{}, err
	}

	for _, entry := range file.Queries {
		if entry.ID == string(id) {
			return fromQuerySchema(entry), nil
		}
	}

	return domain.ProcessQuery{}, domain.ErrQueryNotFound
}

func (r *Repository) ListQueries(ctx context.Context) ([]domain.ProcessQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := r.read()
	if err != nil {
		return nil, err
	}

	queries := make([]domain.ProcessQuery, 0, len(file.Queries))
	for _, entry := range file.Queries {
		queries = append(queries, fromQuerySchema(entry))
	}

	return queries, nil
}

func (r *Repository) read() (fileSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.readSchema()
}

func (r *Repository) update(ctx context.Context, mutate func(*fileSchema)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	mutate(&file)

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.catalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read catalog file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode catalog file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeCatalogPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve catalog path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.catalogPath), catalogDirMode); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode catalog file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.catalogPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp catalog file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp catalog file: %w", err)
	}

	if err := tempFile.Chmod(catalogFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp catalog file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp catalog file: %w", err)
	}

	if err := os.Rename(tempName, r.catalogPath); err != nil {
		return fmt.Errorf("replace catalog file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.catalogPath, catalogFileMode); err != nil {
		return fmt.Errorf("chmod catalog file: %w", err)
	}

	return nil
}

func toDataSourceSchema(source domain.DataSource) dataSourceSchema {
	return dataSourceSchema{
		ID:        string(source.ID),
		Name:      source.Name,
		Kind:      string(source.Kind),
		URL:       source.URL,
		Username:  source.Username,
		SecretRef: source.SecretRef,
	}
}

func fromDataSourceSchema(source dataSourceSchema) domain.DataSource {
	return domain.DataSource{
		ID:        domain.DataSourceID(source.ID),
		Name:      source.Name,
		Kind:      domain.DataSourceKind(source.Kind),
		URL:       source.URL,
		Username:  source.Username,
		SecretRef: source.SecretRef,
	}
}

func toQuerySchema(query domain.ProcessQuery) querySchema {
	return querySchema{
		ID:          string(query.ID),
		Name:        query.Name,
		Description: query.Description,
		ProcessorID: query.ProcessorID,
		Statement:   query.Statement,
		NameColumn:  query.NameColumn,
		ResultType:  string(query.ResultType),
		Parameters:  query.Parameters,
	}
}

func fromQuerySchema(query querySchema) domain.ProcessQuery {
	return domain.ProcessQuery{
		ID:          domain.QueryID(query.ID),
		Name:        query.Name,
		Description: query.Description,
		ProcessorID: query.ProcessorID,
		Statement:   query.Statement,
		NameColumn:  query.NameColumn,
		ResultType:  domain.TypeID(query.ResultType),
		Parameters:  query.Parameters,
	}
}
