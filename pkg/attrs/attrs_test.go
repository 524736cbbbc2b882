package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "unitedhelp/pkg/domain"
)

func TestString(t *testing.T) {
	eventID := id.NewEventID()
	kv := []any{"event_id", eventID, "reason", "rain", "processed", 3, "dangling"}

	assert.Equal(t, eventID.String(), String(kv, "event_id"))
	assert.Equal(t, "rain", String(kv, "reason"))
	assert.Empty(t, String(kv, "processed"), "non-string values are ignored")
	assert.Empty(t, String(kv, "dangling"), "key without a value")
	assert.Empty(t, String(kv, "missing"))
}
