package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPrefixes(t *testing.T) {
	assert.Equal(t, "lock:analysis:run", lockKey("analysis:run"))
	assert.Equal(t, "ratelimit:api:10.0.0.1", rateLimitKey("api:10.0.0.1"))
	assert.Equal(t, "backtest:abc", backtestKey("abc"))
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes(map[string]interface{}{"payload": "hello"})
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), b)

	b, ok = payloadBytes(map[string]interface{}{"payload": []byte{1, 2}})
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)

	_, ok = payloadBytes(map[string]interface{}{"other": "x"})
	assert.False(t, ok)
	_, ok = payloadBytes(map[string]interface{}{"payload": 42})
	assert.False(t, ok)
}
