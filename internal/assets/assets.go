// Package assets embeds the studio's browser files: the parent page and its
// script, the presentation page, and the design-mode bundle injected into
// slide frames.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetBridgeJS returns the in-frame design-mode bridge script
func GetBridgeJS() ([]byte, error) {
	return clientFS.ReadFile("client/bridge.js")
}

// GetEditorCSS returns the hover and selection outline styles injected
// alongside the bridge
func GetEditorCSS() ([]byte, error) {
	return clientFS.ReadFile("client/editor.css")
}

// GetStudioHTML returns the studio page
func GetStudioHTML() ([]byte, error) {
	return clientFS.ReadFile("client/studio.html")
}

// GetPresentHTML returns the presentation page
func GetPresentHTML() ([]byte, error) {
	return clientFS.ReadFile("client/present.html")
}

// ContentTypes maps the served client files to their media types. Files
// not listed are not served.
var ContentTypes = map[string]string{
	"studio.js":  "application/javascript; charset=utf-8",
	"studio.css": "text/css; charset=utf-8",
	"present.js": "application/javascript; charset=utf-8",
	"bridge.js":  "application/javascript; charset=utf-8",
	"editor.css": "text/css; charset=utf-8",
}

// ReadFile returns one client file by name
func ReadFile(name string) ([]byte, error) {
	return clientFS.ReadFile("client/" + name)
}
