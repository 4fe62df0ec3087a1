// Package profile persists the single user profile blob.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/user"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/infrastructure/crypto"
)

// FileStore keeps the profile as JSON in one file, optionally sealed.
// A missing, corrupt or unreadable file is "no profile", never an error.
type FileStore struct {
	path string
	aead *crypto.AEAD // nil = plaintext
	log  zerolog.Logger
	now  func() time.Time

	mu sync.Mutex
}

func NewFileStore(path string, aead *crypto.AEAD, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, aead: aead, log: log, now: time.Now}
}

func (s *FileStore) Load(ctx context.Context) (user.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("ignoring unreadable profile")
		}
		return user.Profile{}, false
	}
	return p, true
}

func (s *FileStore) load() (user.Profile, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return user.Profile{}, err
	}
	if s.aead != nil {
		if b, err = s.aead.Open(b); err != nil {
			return user.Profile{}, fmt.Errorf("%w: %v", visa.ErrProfileCorrupt, err)
		}
	}
	var p user.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return user.Profile{}, fmt.Errorf("%w: %v", visa.ErrProfileCorrupt, err)
	}
	if p.Name == "" {
		return user.Profile{}, fmt.Errorf("%w: missing name", visa.ErrProfileCorrupt)
	}
	return p, nil
}

func (s *FileStore) Save(ctx context.Context, p user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(p)
}

func (s *FileStore) save(p user.Profile) error {
	if p.Bookings == nil {
		p.Bookings = []user.BookingRecord{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if s.aead != nil {
		if b, err = s.aead.Seal(b); err != nil {
			return err
		}
	}
	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending profile: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.log.Debug().Err(err).Msg("cleanup pending profile")
		}
	}()
	if _, err := pending.Write(b); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return pending.CloseAtomicallyReplace()
}

// RecordBooking appends a confirmed booking to the stored profile. Without a
// profile there is nobody to attach it to and the call is a no-op.
func (s *FileStore) RecordBooking(ctx context.Context, res visa.BookingResult, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, visa.ErrProfileCorrupt) {
			return nil
		}
		return err
	}
	p.AddBooking(res, paymentID, s.now())
	return s.save(p)
}
