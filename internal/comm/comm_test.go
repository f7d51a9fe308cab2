package comm

import (
	"encoding/json"
	"testing"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeEventAppended, &models.Event{ID: 7, Message: "hi"}, "")
	require.NoError(t, err)

	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event-appended","data":{"id":7,"message":"hi","created_at":"0001-01-01T00:00:00Z"}}`, string(payload))
}
