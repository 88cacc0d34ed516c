package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSObjectStore is a Sink backed by a JetStream object store bucket.
type NATSObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNATSObjectStore creates the bucket, or binds to it if it already exists.
func NewNATSObjectStore(js nats.JetStreamContext, bucket string) (*NATSObjectStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("narrate artifacts (%s)", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}
	return &NATSObjectStore{bucket: bucket, store: store}, nil
}

// ConnectNATS dials url and opens the bucket. The returned close func
// drains the connection.
func ConnectNATS(url, bucket string, logger *slog.Logger) (*NATSObjectStore, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("narrate"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open jetstream: %w", err)
	}
	store, err := NewNATSObjectStore(js, bucket)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("nats object store ready", "url", url, "bucket", bucket)
	return store, func() { _ = nc.Drain() }, nil
}

// Bucket returns the bucket name.
func (n *NATSObjectStore) Bucket() string {
	return n.bucket
}

// Put uploads an object.
func (n *NATSObjectStore) Put(_ context.Context, key string, data []byte) error {
	_, err := n.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}

// Get downloads an object.
func (n *NATSObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}
	return data, nil
}

// Exists reports whether key is present.
func (n *NATSObjectStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := n.store.GetInfo(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object '%s': %w", key, err)
	}
	return true, nil
}

// Delete removes an object.
func (n *NATSObjectStore) Delete(_ context.Context, key string) error {
	err := n.store.Delete(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}
	return nil
}

var _ Sink = (*NATSObjectStore)(nil)
