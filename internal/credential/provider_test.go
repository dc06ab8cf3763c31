package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	token, err := Static("tok").Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = Static("").Token()
	assert.ErrorIs(t, err, ErrNoCredential)
}
