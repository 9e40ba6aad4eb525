// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// The filename is the key and the trimmed contents are the value.
//
// Recognized files: redis-password, contact-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/pkg/types"
)

const (
	KeyRedisPassword = "redis-password"
	KeyContactEmail  = "contact-email"
)

// Credentials are the secrets a run can use.
type Credentials struct {
	RedisPassword string

	// ContactEmail is sent to identifier authorities in the User-Agent.
	ContactEmail string
}

// Load reads the recognized files in dir. A missing directory or missing
// files are not errors. Unreadable files are logged and skipped.
func Load(dir string, log logger.Logger) (Credentials, error) {
	var creds Credentials
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return creds, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		var dst *string
		switch name {
		case KeyRedisPassword:
			dst = &creds.RedisPassword
		case KeyContactEmail:
			dst = &creds.ContactEmail
		default:
			log.Debug("ignoring unknown secret", zap.String("name", name))
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		*dst = strings.TrimSpace(string(data))
	}
	return creds, nil
}

// Apply fills settings the configuration left empty: the redis password
// and a mailto contact on the User-Agent.
func (c Credentials) Apply(cfg *types.PreprocessConfig) {
	if cfg.Storage.Redis.Password == "" {
		cfg.Storage.Redis.Password = c.RedisPassword
	}
	if c.ContactEmail != "" && !strings.Contains(cfg.HTTP.UserAgent, "mailto:") {
		cfg.HTTP.UserAgent = strings.TrimSpace(cfg.HTTP.UserAgent + " (mailto:" + c.ContactEmail + ")")
	}
}
