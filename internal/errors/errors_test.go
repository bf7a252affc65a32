package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancedError_MessageIncludesMetadata(t *testing.T) {
	err := Newf("stream unreachable").
		Component("capture").
		Category(CategoryNetwork).
		Context("alert_id", 42).
		Build()

	msg := err.Error()
	assert.Contains(t, msg, "stream unreachable")
	assert.Contains(t, msg, "component=capture")
	assert.Contains(t, msg, "category=network")
	assert.Contains(t, msg, "alert_id=42")
}

func TestEnhancedError_UnwrapKeepsSentinelChain(t *testing.T) {
	sentinel := New("not found")
	err := Wrap(sentinel).Component("datastore").Category(CategoryDatabase).Build()

	assert.True(t, Is(err, sentinel))

	var enhanced *EnhancedError
	require.True(t, As(err, &enhanced))
	assert.Equal(t, "datastore", enhanced.GetComponent())
	assert.Equal(t, CategoryDatabase, enhanced.GetCategory())
}

func TestEnhancedError_ContextLookup(t *testing.T) {
	err := Newf("boom").Context("device", "ESP32").Build()

	var enhanced *EnhancedError
	require.True(t, As(err, &enhanced))

	v, ok := enhanced.GetContext("device")
	require.True(t, ok)
	assert.Equal(t, "ESP32", v)

	_, ok = enhanced.GetContext("missing")
	assert.False(t, ok)
}

func TestGetCategory(t *testing.T) {
	enhanced := Newf("deadline").Category(CategoryTimeout).Build()
	assert.Equal(t, CategoryTimeout, GetCategory(enhanced))

	wrapped := fmt.Errorf("send failed: %w", enhanced)
	assert.Equal(t, CategoryTimeout, GetCategory(wrapped))

	assert.Equal(t, Category(""), GetCategory(New("plain")))
	assert.Equal(t, Category(""), GetCategory(nil))
}
