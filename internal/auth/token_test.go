package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "token present",
			body: `<head><meta name="csrf-token" content="abc123+/="></head>`,
			want: "abc123+/=",
		},
		{
			name: "first marker wins",
			body: `"csrf-token" content="first" ... "csrf-token" content="second"`,
			want: "first",
		},
		{
			name:    "marker absent",
			body:    `<html><body>maintenance page</body></html>`,
			wantErr: true,
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			token, err := ExtractToken([]byte(tc.body))
			if tc.wantErr {
				require.ErrorIs(t, err, hackmd.ErrTokenNotFound)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, token)
		})
	}
}
