// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive enumerates the dump archives of an input directory and
// the compressed members inside them.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractSuffix names the directory a tar archive is unpacked into.
const ExtractSuffix = "_decompr_zip_dir"

// Kind is the container format of an archive.
type Kind int

const (
	KindDir Kind = iota
	KindTar
	KindTarGz
)

func (k Kind) String() string {
	switch k {
	case KindTar:
		return "tar"
	case KindTarGz:
		return "tar.gz"
	default:
		return "dir"
	}
}

// Archive is one resumable group of members.
type Archive struct {
	// Name is the entry name in the input directory; progress is keyed by it.
	Name string
	Path string
	Kind Kind
}

// Member is one compressed file of records.
type Member struct {
	// Name is the path relative to the archive root, slash-separated.
	Name string
	Path string
}

// List returns the archives in dir sorted by name. AppleDouble files,
// hidden entries, extraction directories and plain files that aren't tar
// archives are ignored.
func List(dir string) ([]Archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var out []Archive
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if e.IsDir() {
			if strings.HasSuffix(name, ExtractSuffix) {
				continue
			}
			out = append(out, Archive{Name: name, Path: path, Kind: KindDir})
			continue
		}
		if kind, ok := tarKind(name); ok {
			out = append(out, Archive{Name: name, Path: path, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func tarKind(name string) (Kind, bool) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return KindTarGz, true
	case strings.HasSuffix(name, ".tar"):
		return KindTar, true
	}
	return 0, false
}

// Root returns the directory holding the archive's members: the archive
// itself for directories, its extraction directory for tars.
func (a Archive) Root() string {
	if a.Kind == KindDir {
		return a.Path
	}
	base := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(a.Name, ".tgz"), ".gz"), ".tar")
	return filepath.Join(filepath.Dir(a.Path), base+ExtractSuffix)
}

// Members returns the archive's files ending in ext, sorted by name. Tar
// archives are unpacked on first use; an existing extraction directory is
// reused.
func (a Archive) Members(ext string) ([]Member, error) {
	root := a.Root()
	if a.Kind != KindDir {
		if err := a.ensureExtracted(root); err != nil {
			return nil, err
		}
	}

	var out []Member
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "._") || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, Member{Name: filepath.ToSlash(rel), Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", a.Name, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ensureExtracted unpacks the tar into root through a temporary sibling
// directory, so a crash never leaves a half-filled root behind.
func (a Archive) ensureExtracted(root string) error {
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return nil
	}

	tmp, err := os.MkdirTemp(filepath.Dir(root), ".extract-*")
	if err != nil {
		return fmt.Errorf("creating extraction directory: %w", err)
	}
	if err := a.untar(tmp); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("extracting %s: %w", a.Name, err)
	}
	if err := os.Rename(tmp, root); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("renaming extraction directory: %w", err)
	}
	return nil
}

func (a Archive) untar(dest string) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if a.Kind == KindTarGz {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return err
			}
		}
	}
}

// safeJoin rejects entry names that would land outside dest.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the archive", name)
	}
	return target, nil
}

func writeEntry(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Open returns the member's decompressed contents.
func (m Member) Open() (io.ReadCloser, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("opening member: %w", err)
	}
	if !strings.HasSuffix(m.Name, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip member %s: %w", m.Name, err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}
