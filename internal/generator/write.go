package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// writeFile replaces rel under root through a temp file and a rename, so a
// reader never sees a half-written source file.
func writeFile(root, rel string, content []byte, mode os.FileMode) error {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if st, err := os.Stat(p); err == nil {
		mode = st.Mode().Perm()
	}
	tmp := p + ".tmp-" + time.Now().Format("20060102150405.000000000")
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return fmt.Errorf("write temp %s: %w", rel, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}
