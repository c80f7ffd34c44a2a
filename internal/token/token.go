package token

import (
	"crypto/rand"
	"log/slog"
	mathrand "math/rand"
	"time"
)

const (
	// Length of a public token. Matches the links already in the wild.
	Length = 32

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Source выдаёт случайные байты. Отдельный интерфейс, чтобы в тестах
// подставлять детерминированный источник.
type Source interface {
	Read(p []byte) (int, error)
}

type Generator struct {
	src Source
}

// New returns a Generator backed by crypto/rand.
func New() *Generator { return &Generator{} }

// NewWithSource returns a Generator reading from src instead of crypto/rand.
func NewWithSource(src Source) *Generator { return &Generator{src: src} }

// Token returns a fresh random token of Length alphanumeric characters.
//
// Collisions are not checked: with 62^32 possible values the probability is
// treated as cryptographically negligible. This is an accepted risk - the
// store lookup takes the first match if two tokens ever do collide.
//
// When the strong source fails (or a custom one errors), we fall back to a
// time-seeded math/rand so submission never blocks on entropy.
func (g *Generator) Token() string {
	b := make([]byte, Length)

	src := g.src
	if src == nil {
		src = rand.Reader
	}
	if _, err := src.Read(b); err != nil {
		slog.Warn("token: strong random source failed, falling back", "error", err.Error())
		r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := range b {
			b[i] = byte(r.Intn(256))
		}
	}

	out := make([]byte, Length)
	for i, v := range b {
		out[i] = alphabet[int(v)%len(alphabet)]
	}
	return string(out)
}
