package token

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	accessKey  = "auth_token"
	refreshKey = "refresh_token"

	saltSize = 16
)

// Service is the credential vault. Tokens are encrypted at rest with a key
// derived from the configured vault secret, so a copied database file does
// not leak a usable session.
type Service interface {
	// Load pulls both tokens from the store into memory. Values that fail
	// to decrypt are treated as absent.
	Load(ctx context.Context) error
	// Save encrypts and persists the pair. An empty refresh keeps the one
	// already held, since the backend rotates it only sometimes.
	Save(ctx context.Context, access string, refresh string) error
	Clear(ctx context.Context) error

	Access() string
	Refresh() string
	Authenticated() bool
}

type service struct {
	log    zerolog.Logger
	repo   domain.KVRepo
	secret []byte

	m       sync.RWMutex
	access  string
	refresh string
}

func NewService(log logger.Logger, repo domain.KVRepo, cfg *domain.Config) Service {
	return &service{
		log:    log.With().Str("module", "token").Logger(),
		repo:   repo,
		secret: []byte(cfg.VaultSecret),
	}
}

func (s *service) Load(ctx context.Context) error {
	access, err := s.loadOne(ctx, accessKey)
	if err != nil {
		return err
	}
	refresh, err := s.loadOne(ctx, refreshKey)
	if err != nil {
		return err
	}

	s.m.Lock()
	s.access = access
	s.refresh = refresh
	s.m.Unlock()

	if access != "" {
		s.log.Debug().Msg("Restored credentials from vault")
	}
	return nil
}

func (s *service) loadOne(ctx context.Context, key string) (string, error) {
	sealed, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", errors.Wrap(err, "failed to read %s from store", key)
	}
	if sealed == nil {
		return "", nil
	}
	plain, err := s.open(sealed)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Stored token failed to decrypt, discarding")
		return "", nil
	}
	return string(plain), nil
}

func (s *service) Save(ctx context.Context, access string, refresh string) error {
	if access == "" {
		return errors.New("access token must not be empty")
	}

	s.m.Lock()
	if refresh == "" {
		refresh = s.refresh
	}
	s.access = access
	s.refresh = refresh
	s.m.Unlock()

	sealed, err := s.seal([]byte(access))
	if err != nil {
		return errors.Wrap(err, "failed to encrypt access token")
	}
	if err := s.repo.Set(ctx, accessKey, sealed); err != nil {
		return errors.Wrap(err, "failed to persist access token")
	}

	if refresh != "" {
		sealed, err = s.seal([]byte(refresh))
		if err != nil {
			return errors.Wrap(err, "failed to encrypt refresh token")
		}
		if err := s.repo.Set(ctx, refreshKey, sealed); err != nil {
			return errors.Wrap(err, "failed to persist refresh token")
		}
	}

	s.log.Debug().Msg("Credentials saved to vault")
	return nil
}

func (s *service) Clear(ctx context.Context) error {
	s.m.Lock()
	s.access = ""
	s.refresh = ""
	s.m.Unlock()

	if err := s.repo.Delete(ctx, accessKey, refreshKey); err != nil {
		return errors.Wrap(err, "failed to clear credentials")
	}
	s.log.Debug().Msg("Credentials cleared from vault")
	return nil
}

func (s *service) Access() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.access
}

func (s *service) Refresh() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.refresh
}

func (s *service) Authenticated() bool {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.access != ""
}

// seal encrypts plaintext as salt || nonce || ciphertext. A fresh salt per
// write means identical tokens never produce identical blobs.
func (s *service) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

func (s *service) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed token is too short")
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

func (s *service) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.secret, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}
