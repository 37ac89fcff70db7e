package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseID(t *testing.T) {
	id := FormatID(DefaultPrefix, Counter{Current: DefaultInitialNumber}.Next().Current)
	assert.Equal(t, "Inv-12321", id)

	n, err := ParseID(DefaultPrefix, id)
	require.NoError(t, err)
	assert.Equal(t, int64(12321), n)

	for _, bad := range []string{"POS-1", "Inv-", "Inv-x1", "Inv--3"} {
		_, err := ParseID(DefaultPrefix, bad)
		assert.Error(t, err, bad)
	}
}
