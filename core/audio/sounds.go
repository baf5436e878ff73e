package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSoundExtension is appended to sound ids without an extension.
const DefaultSoundExtension = ".mp3"

// SoundLibrary resolves sound identifiers to files under Dir.
type SoundLibrary struct {
	Dir string
}

// Path returns the file path for id without checking that it exists.
func (l SoundLibrary) Path(id string) string {
	if filepath.Ext(id) == "" {
		id += DefaultSoundExtension
	}
	return filepath.Join(l.Dir, id)
}

// Resolve returns the path for id if the file exists.
func (l SoundLibrary) Resolve(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("empty sound id")
	}

	path := l.Path(id)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("sound %q not available: %w", id, err)
	} else if info.IsDir() {
		return "", fmt.Errorf("sound %q resolves to a directory", id)
	}

	return path, nil
}
