package errors

import (
	"fmt"
	"testing"

	"github.com/oz-collabo-04/Back/domain"
	"github.com/stretchr/testify/require"
)

func TestCloseCode(t *testing.T) {
	req := require.New(t)

	req.Equal(domain.CloseMissingRoute, CloseCode(ErrMissingRoom))
	req.Equal(domain.CloseMissingRoute, CloseCode(fmt.Errorf("room 4: %w", ErrNotAParty)))
	req.Equal(domain.CloseUnauthorized, CloseCode(ErrUnauthorized))
	req.Equal(domain.CloseNotFound, CloseCode(ErrRoomNotFound))
	req.Equal(domain.CloseNotFound, CloseCode(fmt.Errorf("boom")))
}

func TestCloseReason(t *testing.T) {
	req := require.New(t)

	// Given an admission error quoting the raw room id
	err := fmt.Errorf("%w: %q", ErrMissingRoom, "x\u00e9\u00e9")

	// Then only the fixed reason of its code is sent
	req.Equal("invalid room", CloseReason(err))
	req.Equal("unauthorized", CloseReason(ErrUnauthorized))
	req.Equal("room not found", CloseReason(ErrRoomNotFound))
	req.Equal("internal error", CloseReason(fmt.Errorf("boom")))
}
