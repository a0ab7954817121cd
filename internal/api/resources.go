package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ResourceHandler serves copied image assets from the vault resource folder.
type ResourceHandler struct {
	vaultRoot   string
	resourceDir string
}

// NewResourceHandler creates a handler rooted at the vault's resource folder.
func NewResourceHandler(vaultRoot, resourceDir string) *ResourceHandler {
	return &ResourceHandler{vaultRoot: vaultRoot, resourceDir: resourceDir}
}

func (h *ResourceHandler) resourcePath() string {
	return filepath.Join(h.vaultRoot, h.resourceDir)
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the resource dir.
func (h *ResourceHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.resourcePath(), cleaned)
	if !strings.HasPrefix(abs, h.resourcePath()+string(os.PathSeparator)) && abs != h.resourcePath() {
		return "", fmt.Errorf("path escapes resource directory")
	}
	return abs, nil
}

// ServeFile handles GET /resources/{filename}.
func (h *ResourceHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
