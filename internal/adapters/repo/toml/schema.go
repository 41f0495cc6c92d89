package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version     int                `toml:"version"`
	DataSources []dataSourceSchema `toml:"data_sources"`
	Queries     []querySchema      `toml:"queries"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported catalog schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type dataSourceSchema struct {
	ID        string `toml:"id"`
	Name      string `toml:"name,omitempty"`
	Kind      string `toml:"kind"`
	URL       string `toml:"url"`
	Username  string `toml:"username,omitempty"`
	SecretRef string `toml:"secret_ref,omitempty"`
}

type querySchema struct {
	ID          string         `toml:"id"`
	Name        string         `toml:"name,omitempty"`
	Description string         `toml:"description,omitempty"`
	ProcessorID string         `toml:"processor_id,omitempty"`
	Statement   string         `toml:"statement"`
	NameColumn  string         `toml:"name_column,omitempty"`
	ResultType  string         `toml:"result_type,omitempty"`
	Parameters  map[string]any `toml:"parameters,omitempty"`
}
