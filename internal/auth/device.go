package auth

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DeviceInfo builds the identifier sent to the identity service with login
// and refresh requests, so sessions are distinguishable per install. The
// random component is generated once and persisted at path.
func DeviceInfo(path, label string) string {
	id := loadOrCreateDeviceID(path)
	if label == "" {
		label = "GoClient"
	}
	return label + "/" + id
}

func loadOrCreateDeviceID(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0o600)
	}
	return id
}
