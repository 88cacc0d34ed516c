package storage

import (
	"context"
	"errors"
	"log/slog"
)

// Store is the local filesystem with an optional remote mirror. Local
// files are authoritative; mirror failures are logged, never returned.
type Store struct {
	*FS
	mirror Sink
	logger *slog.Logger
}

// NewStore wraps fs. mirror may be nil.
func NewStore(fs *FS, mirror Sink, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{FS: fs, mirror: mirror, logger: logger.With("component", "storage")}
}

// Mirrored reports whether a mirror is configured.
func (s *Store) Mirrored() bool {
	return s.mirror != nil
}

// Put writes locally, then mirrors.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.FS.Put(ctx, key, data); err != nil {
		return err
	}
	s.mirrorPut(ctx, key, data)
	return nil
}

// Get reads locally and falls back to the mirror, restoring the local copy.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.FS.Get(ctx, key)
	if err == nil || s.mirror == nil || !errors.Is(err, ErrNotFound) {
		return data, err
	}

	data, mErr := s.mirror.Get(ctx, key)
	if mErr != nil {
		if !errors.Is(mErr, ErrNotFound) {
			s.logger.Warn("mirror read failed", "key", key, "error", mErr)
		}
		return nil, err
	}
	if err := s.FS.Put(ctx, key, data); err != nil {
		s.logger.Warn("failed to restore object from mirror", "key", key, "error", err)
	} else {
		s.logger.Info("restored object from mirror", "key", key)
	}
	return data, nil
}

// Exists checks locally, then the mirror.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.FS.Exists(ctx, key)
	if err != nil || ok || s.mirror == nil {
		return ok, err
	}
	ok, mErr := s.mirror.Exists(ctx, key)
	if mErr != nil {
		s.logger.Warn("mirror exists check failed", "key", key, "error", mErr)
		return false, nil
	}
	return ok, nil
}

// Delete removes locally and from the mirror.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.FS.Delete(ctx, key)
	if s.mirror != nil {
		if mErr := s.mirror.Delete(ctx, key); mErr != nil && !errors.Is(mErr, ErrNotFound) {
			s.logger.Warn("mirror delete failed", "key", key, "error", mErr)
		}
	}
	return err
}

// Publish pushes a file written directly under the root (e.g. by ffmpeg)
// to the mirror.
func (s *Store) Publish(ctx context.Context, key string) {
	if s.mirror == nil {
		return
	}
	data, err := s.FS.Get(ctx, key)
	if err != nil {
		s.logger.Warn("publish skipped", "key", key, "error", err)
		return
	}
	s.mirrorPut(ctx, key, data)
}

func (s *Store) mirrorPut(ctx context.Context, key string, data []byte) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Put(ctx, key, data); err != nil {
		s.logger.Warn("mirror write failed", "key", key, "error", err)
		return
	}
	s.logger.Debug("mirrored object", "key", key, "bytes", len(data))
}

var _ Sink = (*Store)(nil)
