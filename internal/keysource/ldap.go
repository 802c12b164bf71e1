package keysource

import (
	"context"
	"fmt"

	"github.com/go-ldap/go-ldap/v3"
	"golang.org/x/crypto/ssh"
)

// sshPublicKeyAttribute is the LDAP attribute holding a user's authorized
// OpenSSH public keys, one value per key.
const sshPublicKeyAttribute = "sshPublicKey"

// LDAP resolves SSH keys by binding to a directory server and searching
// for a "(uid=<user>)" entry under a configured base DN. Unlike a
// persistent directory connection, each lookup dials and binds fresh:
// go-ldap's client is synchronous request/response, so there is no
// equivalent of holding a long-lived connection open against a background
// driver task, and a lookup happens at most once per SSH authentication
// attempt.
type LDAP struct {
	address  string
	baseDN   string
	bindDN   string
	password string
}

// New returns an LDAP key source. It does not dial until the first lookup.
func New(address, baseDN, bindDN, password string) *LDAP {
	return &LDAP{
		address:  address,
		baseDN:   baseDN,
		bindDN:   bindDN,
		password: password,
	}
}

// GetSSHKeys binds to the directory and searches for the given username's
// sshPublicKey attribute values, parsing each as an OpenSSH authorized-key
// line.
func (l *LDAP) GetSSHKeys(ctx context.Context, username string) ([]ssh.PublicKey, error) {
	conn, err := ldap.DialURL(l.address)
	if err != nil {
		return nil, fmt.Errorf("keysource: dial ldap %s: %w", l.address, err)
	}
	defer conn.Close()

	if err := conn.Bind(l.bindDN, l.password); err != nil {
		return nil, fmt.Errorf("keysource: ldap bind: %w", err)
	}

	req := ldap.NewSearchRequest(
		l.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(username)),
		[]string{sshPublicKeyAttribute},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keysource: ldap search for %q: %w", username, err)
	}

	var keys []ssh.PublicKey
	for _, entry := range result.Entries {
		for _, raw := range entry.GetAttributeValues(sshPublicKeyAttribute) {
			key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("keysource: parse key for %q: %w", username, err)
			}
			keys = append(keys, key)
		}
	}

	return keys, nil
}

var _ KeySource = (*LDAP)(nil)
