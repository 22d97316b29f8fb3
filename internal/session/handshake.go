// internal/session/handshake.go
package session

import "fmt"

// HandshakeFunc maps the session id to the answer a client must send back.
type HandshakeFunc func(id int) int

// Identity expects the id to be echoed.
func Identity(id int) int { return id }

// Affine expects 3*id+1.
func Affine(id int) int { return 3*id + 1 }

var handshakes = map[string]HandshakeFunc{
	"identity": Identity,
	"affine":   Affine,
}

// ParseHandshake returns the transform registered under name.
func ParseHandshake(name string) (HandshakeFunc, error) {
	if name == "" {
		return Identity, nil
	}
	f, ok := handshakes[name]
	if !ok {
		return nil, fmt.Errorf("unknown handshake %q (want identity or affine)", name)
	}
	return f, nil
}
