package ruleerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(ValidationFailed, "bad priority")
	wrapped := fmt.Errorf("inserting rule: %w", base)
	assert.Equal(t, ValidationFailed, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestWrapPreservesCauseForErrorsIs(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(UpstreamUnreachable, "forwarding failed", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, UpstreamUnreachable, KindOf(err))
}

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	err := Wrap(BodyTooLarge, "request body exceeds limit", errors.New("10MB"))
	assert.Contains(t, err.Error(), "BodyTooLarge")
	assert.Contains(t, err.Error(), "10MB")
}

func TestErrorMessageOmitsCauseWhenAbsent(t *testing.T) {
	err := New(NotFound, "rule missing")
	assert.Equal(t, "NotFound: rule missing", err.Error())
}
