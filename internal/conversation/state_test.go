package conversation

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateNamesRoundTrip(t *testing.T) {
	want := []string{"START", "HANDLE_MENU", "HANDLE_DESCRIPTION", "HANDLE_CART", "WAITING_EMAIL"}
	for i, s := range States() {
		assert.Equal(t, want[i], s.String())
		parsed, err := ParseState(want[i])
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestParseStateRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "start", "HANDLE_MENU ", "DONE"} {
		_, err := ParseState(raw)
		assert.True(t, errors.Is(err, ErrStateInconsistency), raw)
	}
	assert.Equal(t, "State(9)", State(9).String())
}

func TestHandlerTableMustCoverEveryState(t *testing.T) {
	assert.Panics(t, func() {
		mustCover(map[State]handler{Start: handleStart, HandleMenu: handleMenu})
	})
	assert.NotPanics(t, func() { New(newFakeGateway(), nil) })
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
