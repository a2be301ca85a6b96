package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpen_ListsEmbeddedVersions(t *testing.T) {
	// sql.Open is lazy; nothing listens here
	m, err := Open("postgres://vidtags@127.0.0.1:1/vidtags?sslmode=disable", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, []int64{1, 2}, m.Versions())
}
