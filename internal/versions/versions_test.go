package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		version     string
		commit      string
		buildDate   string
		wantVersion string
		wantDate    string
	}{
		{
			name:        "release build",
			version:     "v1.4.0",
			commit:      "0123456789abcdef",
			buildDate:   "2026-03-01T10:30:00Z",
			wantVersion: "v1.4.0",
			wantDate:    "2026-03-01 10:30:00 UTC",
		},
		{
			name:        "dev build uses short commit",
			version:     "dev",
			commit:      "0123456789abcdef",
			buildDate:   "not-a-date",
			wantVersion: "build-01234567",
			wantDate:    "not-a-date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := versionInfo(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.commit, info.Commit)
			assert.Equal(t, tt.wantDate, info.BuildDate)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
		})
	}
}

func TestCheckConnectVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reported string
		wantErr  string
	}{
		{reported: "3.0.0"},
		{reported: "3.7.1"},
		{reported: "7.6.0-ccs"},
		{reported: "3.0.0-SNAPSHOT"},
		{reported: "2.8.2", wantErr: "older than the supported minimum"},
		{reported: "2.8.2-ccs", wantErr: "older than the supported minimum"},
		{reported: "latest", wantErr: "unrecognised"},
		{reported: "", wantErr: "unrecognised"},
	}

	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			t.Parallel()

			err := CheckConnectVersion(tt.reported)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
