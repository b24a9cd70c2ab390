package config

import (
	"os"

	"github.com/Faroukdata/fairsync/internal/envfile"
)

// Environment / secrets.env keys.
const (
	EnvDropboxAccessToken  = "DROPBOX_ACCESS_TOKEN"
	EnvDropboxAppKey       = "DROPBOX_APP_KEY"
	EnvDropboxAppSecret    = "DROPBOX_APP_SECRET"
	EnvDropboxRefreshToken = "DROPBOX_REFRESH_TOKEN"
	EnvS3AccessKey         = "FAIRSYNC_S3_ACCESS_KEY"
	EnvS3SecretKey         = "FAIRSYNC_S3_SECRET_KEY"
	EnvWebDAVPassword      = "FAIRSYNC_WEBDAV_PASSWORD"
	EnvPassphrase          = "FAIRSYNC_PASSPHRASE"
)

// Secrets carries every credential the remote backends may need. Values come
// from ~/.fairsync/secrets.env, with process environment variables as
// fallback so CI and one-off runs need no file on disk.
type Secrets struct {
	DropboxAccessToken  string
	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxRefreshToken string

	S3AccessKey string
	S3SecretKey string

	WebDAVPassword string

	// Passphrase, when set, turns on AES-GCM encryption of the uploaded blob.
	Passphrase string
}

// LoadSecrets reads ~/.fairsync/secrets.env. Missing file or missing keys are
// not errors; absent values simply stay empty (or fall back to the process
// environment).
func LoadSecrets() (*Secrets, error) {
	return LoadSecretsFrom(SecretsFilePath())
}

// LoadSecretsFrom reads secrets from an explicit path. Intended for tests.
func LoadSecretsFrom(path string) (*Secrets, error) {
	f, err := envfile.Load(path)
	if err != nil {
		return nil, err
	}
	get := func(key string) string {
		if v := f.Get(key); v != "" {
			return v
		}
		return os.Getenv(key)
	}
	return &Secrets{
		DropboxAccessToken:  get(EnvDropboxAccessToken),
		DropboxAppKey:       get(EnvDropboxAppKey),
		DropboxAppSecret:    get(EnvDropboxAppSecret),
		DropboxRefreshToken: get(EnvDropboxRefreshToken),
		S3AccessKey:         get(EnvS3AccessKey),
		S3SecretKey:         get(EnvS3SecretKey),
		WebDAVPassword:      get(EnvWebDAVPassword),
		Passphrase:          get(EnvPassphrase),
	}, nil
}
