package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const (
	EnvVectorDBToken = "VECTOR_DB_TOKEN"
	EnvVectorDBID    = "VECTOR_DB_ID"
	EnvLLMAPIKey     = "LLM_API_KEY"
)

type Credentials struct {
	VectorDBToken string
	VectorDBID    string
	LLMAPIKey     string
}

// LoadDotEnv loads the given .env files without overriding variables
// already present in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadCredentials reads the three required credentials through lookup.
// Every missing or blank variable is reported in one error.
func LoadCredentials(lookup func(string) (string, bool)) (*Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string, missing *[]string) string {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			*missing = append(*missing, name)
		}
		return v
	}
	var missing []string
	creds := &Credentials{
		VectorDBToken: get(EnvVectorDBToken, &missing),
		VectorDBID:    get(EnvVectorDBID, &missing),
		LLMAPIKey:     get(EnvLLMAPIKey, &missing),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", appErr.ErrMissingCredential, strings.Join(missing, ", "))
	}
	return creds, nil
}
