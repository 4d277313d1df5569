package gcp

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var defaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/devstorage.read_write",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ClientOptions builds Google client options from an inline service account JSON
// or a credentials file. With neither set it returns nil and the SDKs fall back
// to Application Default Credentials (Cloud Run metadata server).
func ClientOptions(ctx context.Context, credentialsJSON, credentialsFile string) ([]option.ClientOption, error) {
	if raw := strings.TrimSpace(credentialsJSON); raw != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(raw), defaultScopes...)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		return []option.ClientOption{option.WithCredentials(creds)}, nil
	}
	if path := strings.TrimSpace(credentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}, nil
	}
	return nil, nil
}
