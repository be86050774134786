// Package atomicwrite provee escritura atómica de archivos con material sensible.
// Es Windows-safe: si rename falla, intenta remove+rename (preserva lo viejo si falla).
package atomicwrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// DirPerm es el permiso con el que se crean los directorios padre.
const DirPerm fs.FileMode = 0o700

// WriteFile escribe data a path de forma atómica.
// Pasos: tmp (ya con perm) → write → fsync → close → rename → fsync del directorio.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Permisos antes de escribir: la clave nunca queda legible por otros.
	if err := tmp.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir persiste la entrada de directorio del rename. Best effort:
// no todos los sistemas permiten fsync sobre directorios.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
