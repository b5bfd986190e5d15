package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

const tokenFileName = "token.yaml"

type tokenFile struct {
	Token string `yaml:"token"`
}

// FileCredentials is a CredentialStore persisted to a YAML file readable only
// by its owner. An empty token removes the file.
type FileCredentials struct {
	*prstack.MemoryCredentials

	path string
}

// DefaultTokenPath returns the token file next to the config file.
func DefaultTokenPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFileName), nil
}

// LoadCredentials reads the token stored at path, if any.
func LoadCredentials(path string) (*FileCredentials, error) {
	var tf tokenFile
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read token: %w", err)
	default:
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("parse token file %s: %w", path, err)
		}
	}
	return &FileCredentials{
		MemoryCredentials: prstack.NewMemoryCredentials(tf.Token),
		path:              path,
	}, nil
}

// Path returns the token file location.
func (f *FileCredentials) Path() string {
	return f.path
}

// Stored reports whether a token file exists.
func (f *FileCredentials) Stored() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// SetToken persists token and notifies subscribers.
func (f *FileCredentials) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token: %w", err)
		}
		return f.MemoryCredentials.SetToken("")
	}

	out, err := yaml.Marshal(tokenFile{Token: token})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(f.path, out, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(f.path, 0o600); err != nil {
		return fmt.Errorf("restrict token file: %w", err)
	}
	return f.MemoryCredentials.SetToken(token)
}

// Seed sets a token for this process only, without writing it to disk.
func (f *FileCredentials) Seed(token string) error {
	return f.MemoryCredentials.SetToken(token)
}
