package origin

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Loader seeds the directory from an origins.yaml file at boot
 * Provides a declarative alternative to the management API
 */

// Config represents the structure of origins.yaml
type Config struct {
	Origins []NewOrigin `yaml:"origins"`
}

// Load reads and validates the origins YAML file.
func Load(filePath string) ([]NewOrigin, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading origins file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing origins YAML: %w", err)
	}

	seen := make(map[string]bool, len(config.Origins))
	for _, o := range config.Origins {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("validating origin: %w", err)
		}
		if seen[o.Domain] {
			return nil, fmt.Errorf("duplicate domain in origins file: %s", o.Domain)
		}
		seen[o.Domain] = true
	}

	return config.Origins, nil
}

// Seed upserts every origin from the file into the directory.
func Seed(ctx context.Context, directory Directory, filePath string) error {
	origins, err := Load(filePath)
	if err != nil {
		return err
	}

	for _, o := range origins {
		if _, err := directory.Upsert(ctx, o); err != nil {
			return fmt.Errorf("seeding origin %s: %w", o.Domain, err)
		}
	}

	return nil
}
