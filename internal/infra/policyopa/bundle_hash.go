package policyopa

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cryptoinfra "signet/internal/infra/crypto"
)

// The bundle hash covers the normative files only (.rego, data.json,
// manifest.json), each by path and content digest, canonicalized so the
// hash is stable across filesystems and walk order. It is stamped into
// every policy evaluation for the audit trail.

type bundleManifest struct {
	Files []bundleFile `json:"files"`
}

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(bundlePath), ".")
}

func ComputeBundleHashFromFS(fsys fs.FS, root string) (string, error) {
	files, err := collectBundleFiles(fsys, root)
	if err != nil {
		return "", err
	}
	canonical, err := cryptoinfra.CanonicalizeAny(bundleManifest{Files: files})
	if err != nil {
		return "", err
	}
	return cryptoinfra.SHA256Hex(canonical), nil
}

func collectBundleFiles(fsys fs.FS, root string) ([]bundleFile, error) {
	var files []bundleFile
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		if d.IsDir() {
			if skipDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !normativeFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, bundleFile{
			Path:   filepath.ToSlash(path),
			SHA256: cryptoinfra.SHA256Hex(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func skipDir(path string) bool {
	base := filepath.Base(path)
	return base == "__MACOSX" || base == "vendor" || strings.HasPrefix(base, ".")
}

func normativeFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if base == "data.json" || base == "manifest.json" {
		return true
	}
	return strings.HasSuffix(base, ".rego") && !strings.HasSuffix(base, "_test.rego")
}
