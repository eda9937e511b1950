package logging

import (
	"context"

	"github.com/google/uuid"
)

type debugKeyType struct{}

// EnableDebugMode marks ctx so that every `C` log call made with it is written, tagged with key.
// An empty key is replaced by a short random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, debugKeyType{}, key)
}

// IsDebugMode reports whether EnableDebugMode marked ctx.
func IsDebugMode(ctx context.Context) bool {
	return debugKey(ctx) != ""
}

func debugKey(ctx context.Context) string {
	key, _ := ctx.Value(debugKeyType{}).(string)
	return key
}
