package hcl

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContentType(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{
			name:        "HCL header",
			contentType: "application/vnd.hcl; charset=utf-8",
			body:        `{"timeline": {}}`,
			want:        ContentTypeHCL,
		},
		{
			name:        "JSON header",
			contentType: "application/json",
			body:        `timeline {}`,
			want:        ContentTypeJSON,
		},
		{
			name: "sniffed JSON",
			body: `  {"condition": {"rest": {}}}`,
			want: ContentTypeJSON,
		},
		{
			name: "sniffed HCL",
			body: "condition \"rest\" {\n  description = \"eyes closed\"\n}\n",
			want: ContentTypeHCL,
		},
		{
			name:        "unknown header falls back to sniffing",
			contentType: "text/plain",
			body:        "timeline {\n  length = 5\n}\n",
			want:        ContentTypeHCL,
		},
		{
			name: "empty body",
			want: ContentTypeJSON,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/timelines/x", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			got, err := DetectContentType(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			// the body can still be read after sniffing
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.body, string(body))
		})
	}
}

func TestFormatForFilename(t *testing.T) {
	assert.Equal(t, ContentTypeHCL, FormatForFilename("session.hcl"))
	assert.Equal(t, ContentTypeHCL, FormatForFilename("main.tf"))
	assert.Equal(t, ContentTypeJSON, FormatForFilename("session.json"))
	assert.Equal(t, ContentTypeJSON, FormatForFilename("session.hcl.json"))
	assert.False(t, IsHCL([]byte("timeline {")))
}
