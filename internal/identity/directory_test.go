package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"social-backend/internal/models"
)

func TestStaticDirectory(t *testing.T) {
	d := NewStatic(models.DisplayInfo{ID: "u1", Name: "Ana", AvatarURL: "http://x/a.png"})

	info, err := d.DisplayInfo(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Ana", info.Name)

	_, err = d.DisplayInfo(context.Background(), "u2")
	require.ErrorIs(t, err, ErrUnknownUser)

	d.Put(models.DisplayInfo{ID: "u2", Name: "Ben"})
	info, err = d.DisplayInfo(context.Background(), "u2")
	require.NoError(t, err)
	require.Equal(t, "Ben", info.Name)
}

func TestCachedDirectoryFallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	next := NewStatic(models.DisplayInfo{ID: "u1", Name: "Ana"})
	d := NewCachedDirectory(next, client, time.Minute)

	info, err := d.DisplayInfo(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Ana", info.Name)

	_, err = d.DisplayInfo(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"_id": "u1", "name": "Ana", "avatarUrl": "http://x/a.png"},
		{"_id": "u2", "name": "Ben"}
	]`), 0o600))

	d, err := LoadStatic(path)
	require.NoError(t, err)
	info, err := d.DisplayInfo(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, models.DisplayInfo{ID: "u1", Name: "Ana", AvatarURL: "http://x/a.png"}, *info)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "nobody"}]`), 0o600))
	_, err = LoadStatic(path)
	require.Error(t, err)

	_, err = LoadStatic(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
