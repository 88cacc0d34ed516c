package storage

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// startTestNATS starts an in-process JetStream server.
func startTestNATS(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := test.RunServer(&opts)

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

func TestNATSObjectStore_RoundTrip(t *testing.T) {
	_, nc := startTestNATS(t)
	js, err := nc.JetStream()
	require.NoError(t, err)

	store, err := NewNATSObjectStore(js, "test-bucket")
	require.NoError(t, err)

	ctx := context.Background()
	key := AudioKey("book_ch1.mp3")
	payload := []byte("mp3 bytes")

	require.NoError(t, store.Put(ctx, key, payload))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNATSObjectStore_BindsExistingBucket(t *testing.T) {
	_, nc := startTestNATS(t)
	js, err := nc.JetStream()
	require.NoError(t, err)

	first, err := NewNATSObjectStore(js, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Put(context.Background(), "k", []byte("v")))

	second, err := NewNATSObjectStore(js, "shared")
	require.NoError(t, err)
	got, err := second.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestStore_MirrorsToNATS(t *testing.T) {
	_, nc := startTestNATS(t)
	js, err := nc.JetStream()
	require.NoError(t, err)
	mirror, err := NewNATSObjectStore(js, "mirror")
	require.NoError(t, err)

	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	store := NewStore(fs, mirror, nil)
	require.True(t, store.Mirrored())

	ctx := context.Background()
	key := TranslationKey("b", "c")
	require.NoError(t, store.Put(ctx, key, []byte("译文")))

	remote, err := mirror.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("译文"), remote)

	// Lose the local copy; Get restores it from the mirror.
	require.NoError(t, fs.Delete(ctx, key))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("译文"), got)

	local, err := fs.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("译文"), local)
}
