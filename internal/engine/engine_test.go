package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransport(t *testing.T) {
	cases := []struct {
		in      string
		want    Transport
		wantErr bool
	}{
		{"socket", TransportSocket, false},
		{"", TransportSocket, false},
		{"http", TransportHTTP, false},
		{"HTTP", TransportHTTP, false},
		{"tls", TransportTLS, false},
		{"bogus", 0, true},
	}
	for _, c := range cases {
		got, err := ParseTransport(c.in)
		if c.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestSummaryName(t *testing.T) {
	name, ok := Summary{Names: []string{"/my-job"}}.Name()
	require.True(t, ok)
	assert.Equal(t, "my-job", name)

	_, ok = Summary{}.Name()
	assert.False(t, ok)
}
