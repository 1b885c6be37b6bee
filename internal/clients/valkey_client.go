package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type ValkeyOptions struct {
	InitAddress string
	Password    string
	TLS         bool
}

type ValkeyClient struct {
	Client valkey.Client
}

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func NewValkeyClient(ctx context.Context, o ValkeyOptions) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{
			o.InitAddress,
		},
		Password:         o.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if o.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", o.InitAddress))
	return &ValkeyClient{Client: client}, nil
}

func (vc *ValkeyClient) Close() {
	if vc != nil && vc.Client != nil {
		vc.Client.Close()
	}
}

func processedKey(source, id string) string {
	return "processed:" + source + ":" + id
}

// MarkProcessed remembers source id for ttl.
func (vc *ValkeyClient) MarkProcessed(ctx context.Context, source, id string, ttl time.Duration) error {
	cmd := vc.Client.B().Set().Key(processedKey(source, id)).Value("1").ExSeconds(int64(ttl.Seconds())).Build()
	if err := vc.DoWithRetry(ctx, cmd, 3).Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] mark processed %s/%s: %w", source, id, err)
	}
	return nil
}

// IsProcessed reports whether source id was marked within its ttl.
func (vc *ValkeyClient) IsProcessed(ctx context.Context, source, id string) (bool, error) {
	res := vc.DoWithRetry(ctx, vc.Client.B().Exists().Key(processedKey(source, id)).Build(), 3)
	n, err := res.AsInt64()
	if err != nil {
		return false, fmt.Errorf("[ValkeyClient] check processed %s/%s: %w", source, id, err)
	}
	return n > 0, nil
}

// TryLock sets key to a fresh token unless it already exists. ok is false
// when another holder owns the lock.
func (vc *ValkeyClient) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	cmd := vc.Client.B().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	err = vc.Client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[ValkeyClient] acquire lock %s: %w", key, err)
	}
	return token, true, nil
}

func (vc *ValkeyClient) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Exec(ctx, vc.Client, []string{key}, []string{token}).Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] release lock %s: %w", key, err)
	}
	return nil
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	// Pinned commands survive more than one Do.
	completed = completed.Pin()
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, completed)
		if result.Error() == nil || valkey.IsValkeyNil(result.Error()) || !isConnectionError(result.Error()) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		if err := sleepCtx(ctx, 250*time.Millisecond); err != nil {
			break
		}
	}
	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
