package notify

import (
	"context"
	"fmt"
)

// PermissionStatus is the user's answer to the notification prompt.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Permissions reads and requests notification permission for a device.
type Permissions interface {
	Status(ctx context.Context) (PermissionStatus, error)
	Request(ctx context.Context) (PermissionStatus, error)
}

// TokenSource issues the push token of a device.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Register asks for permission when it has not been granted yet and
// returns the device token. It returns "" when permission is withheld.
func Register(ctx context.Context, perms Permissions, tokens TokenSource) (string, error) {
	status, err := perms.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("permission status: %w", err)
	}
	if status != PermissionGranted {
		status, err = perms.Request(ctx)
		if err != nil {
			return "", fmt.Errorf("request permission: %w", err)
		}
	}
	if status != PermissionGranted {
		return "", nil
	}
	token, err := tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("push token: %w", err)
	}
	return token, nil
}
