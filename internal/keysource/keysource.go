// Package keysource resolves the SSH public keys a username is allowed to
// authenticate with, decoupling the SSH gateway from wherever those keys
// are actually managed.
package keysource

import (
	"context"

	"golang.org/x/crypto/ssh"
)

// KeySource looks up the public keys registered to username.
type KeySource interface {
	GetSSHKeys(ctx context.Context, username string) ([]ssh.PublicKey, error)
}
