package inject

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundle = `<script data-sfc="1">/*b*/</script>`

func TestInto(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "before closing body",
			doc:  "<html><body><p>x</p></body></html>",
			want: "<html><body><p>x</p>" + bundle + "</body></html>",
		},
		{
			name: "last closing body wins",
			doc:  "<html><body><pre>&lt;/body&gt;</body></body></html>",
			want: "<html><body><pre>&lt;/body&gt;</body>" + bundle + "</body></html>",
		},
		{
			name: "upper case tags",
			doc:  "<HTML><BODY>x</BODY></HTML>",
			want: "<HTML><BODY>x" + bundle + "</BODY></HTML>",
		},
		{
			name: "no body falls back to html",
			doc:  "<html><p>x</p></html>",
			want: "<html><p>x</p>" + bundle + "</html>",
		},
		{
			name: "fragment appends",
			doc:  "<p>x</p>",
			want: "<p>x</p>" + bundle,
		},
		{
			name: "empty document",
			doc:  "",
			want: bundle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Into(tt.doc, bundle))
		})
	}
}

func TestIntoIsIdempotent(t *testing.T) {
	full, err := Bundle()
	require.NoError(t, err)

	for _, doc := range []string{
		"<html><body><h1>t</h1></body></html>",
		"<html><h1>t</h1></html>",
		"<h1>t</h1>",
	} {
		once := Into(doc, full)
		assert.Equal(t, once, Into(once, full))
		assert.Equal(t, 1, strings.Count(once, `<style data-sfc="1">`))
		assert.True(t, Injected(once))
	}
}

func TestBundleCarriesMarkers(t *testing.T) {
	full, err := Bundle()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, `<style data-sfc="1">`))
	assert.Contains(t, full, `<script data-sfc="1">`)
	assert.True(t, strings.HasSuffix(full, "</script>"))
}
