package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadFromEnv reads the process environment, seeded from ./.env when present.
// Variables already set in the environment win over the file.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}

// LoadClientFromEnv is LoadFromEnv for processes that do not need the
// explorer credential.
func LoadClientFromEnv() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadClient(FromEnviron())
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
