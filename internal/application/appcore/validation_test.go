package appcore_test

import (
	"strings"
	"testing"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequired(t *testing.T) {
	require.NoError(t, appcore.ValidateRequired("title", "hello"))

	err := appcore.ValidateRequired("title", "   ")
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	var vErr *appcore.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title", vErr.Field)
}

func TestValidateMaxLength(t *testing.T) {
	require.NoError(t, appcore.ValidateMaxLength("title", "абв", 3))
	require.Error(t, appcore.ValidateMaxLength("title", strings.Repeat("x", 4), 3))
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"info", "error"}
	require.NoError(t, appcore.ValidateEnum("type", "info", allowed))
	require.ErrorIs(t, appcore.ValidateEnum("type", "fatal", allowed), errs.ErrInvalidInput)
}

func TestValidatePositiveID(t *testing.T) {
	require.NoError(t, appcore.ValidatePositiveID("id", 1))
	require.Error(t, appcore.ValidatePositiveID("id", 0))
	require.Error(t, appcore.ValidatePositiveID("id", -3))
}
