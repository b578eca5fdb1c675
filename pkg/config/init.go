package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittofolders configuration
#
# Every value can be overridden with an environment variable:
#   DITTOFOLDERS_<SECTION>_<KEY>, e.g. DITTOFOLDERS_LOGGING_LEVEL=DEBUG
#
# Storage types and their options:
#   memory:   first_id, id_prefix
#   badger:   db_path, in_memory, node_id, block_cache_size_mb, index_cache_size_mb
#   mail:     account, root_name, delimiter, mailboxes, trash_name
#   s3:       region, bucket, key_prefix, endpoint, access_key_id, secret_access_key, max_retries
#   postgres: url, table_prefix, max_conns, node_id
#   mongo:    uri, database, collection_prefix, node_id

`

// InitConfig writes a sample configuration to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: The file exists and force is false, or writing failed
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration to path, creating the
// parent directories.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML below the explanatory header.
func generateYAMLWithComments(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
