package storage

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// PathManager lays out journal files under the data root.
//
//	<root>/<namespace>/<type>/<id>.json
//	<root>/<namespace>/links/<link>.json
type PathManager struct {
	dataRoot  string
	namespace string
}

// NewPathManager creates a path manager.
func NewPathManager(dataRoot, namespace string) *PathManager {
	return &PathManager{
		dataRoot:  dataRoot,
		namespace: normalizeNamespace(namespace),
	}
}

// Root returns the namespace directory.
func (pm *PathManager) Root() string {
	return filepath.Join(pm.dataRoot, pm.namespace)
}

// InstancePath returns the file of one instance.
func (pm *PathManager) InstancePath(objectType, id string) string {
	return filepath.Join(pm.InstanceDir(objectType), url.PathEscape(id)+".json")
}

// InstanceDir returns the directory holding every instance of a type.
func (pm *PathManager) InstanceDir(objectType string) string {
	return filepath.Join(pm.Root(), normalizeName(objectType))
}

// LinkDir returns the directory of the edge files.
func (pm *PathManager) LinkDir() string {
	return filepath.Join(pm.Root(), "links")
}

// LinkPath returns the edge file of a link type.
func (pm *PathManager) LinkPath(linkType string) string {
	return filepath.Join(pm.LinkDir(), normalizeName(linkType)+".json")
}

func normalizeNamespace(namespace string) string {
	if namespace == "" {
		return "default"
	}
	return unsafeNameChars.ReplaceAllString(strings.ToLower(namespace), "_")
}

// normalizeName maps a type name onto a file name. Names with non-ASCII
// characters are hashed.
func normalizeName(name string) string {
	for _, r := range name {
		if r > 127 {
			hash := md5.Sum([]byte(name))
			return hex.EncodeToString(hash[:])
		}
	}
	return unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
}
