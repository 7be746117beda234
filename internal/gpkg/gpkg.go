// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gpkg reads the gpkg binary-package container format: a plain ustar
// tar holding, among other entries, a nested compressed tar of VDB-style
// metadata key files. See spec.md §6 "gpkg container".
package gpkg

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	gtar "cros.local/portage/internal/tar"
)

const (
	metadataEntryPrefix = "metadata.tar"
	imageEntryPrefix    = "image.tar"
)

// ReadMetadata opens the gpkg container at path and returns the VDB-style
// key/value pairs stored in its nested metadata.tar{.zst,.gz,.bz2,} entry.
// Uncompressed, .zst, .gz, and .bz2 nestings are supported; .xz and .lz4 are
// documented in spec.md §6 but are not implemented here, and ReadMetadata
// returns an error naming the unsupported suffix rather than guessing.
func ReadMetadata(path_ string) (map[string][]byte, error) {
	f, err := os.Open(path_)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entryName, entryData, err := findEntry(f, metadataEntryPrefix)
	if err != nil {
		return nil, fmt.Errorf("gpkg %s: %w", path_, err)
	}

	inner, err := decompress(entryName, entryData)
	if err != nil {
		return nil, fmt.Errorf("gpkg %s: %s: %w", path_, entryName, err)
	}

	return readKeyFiles(inner)
}

// ReadImageFileList lists the regular files, hard links, and symlinks of the
// nested `image.tar{.zst|.bz2|.gz|}` member: the actual installed file
// payload, as distinct from the metadata.tar member ReadMetadata reads. As
// with ReadMetadata, an .xz or .lz4 member yields an error.
// Callers that need a file listing but find no CONTENTS key (e.g. a
// CONTENTS-less gpkg build) can fall back to this.
func ReadImageFileList(path_ string) ([]gtar.FileListItem, error) {
	f, err := os.Open(path_)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entryName, entryData, err := findEntry(f, imageEntryPrefix)
	if err != nil {
		return nil, fmt.Errorf("gpkg %s: %w", path_, err)
	}

	inner, err := decompress(entryName, entryData)
	if err != nil {
		return nil, fmt.Errorf("gpkg %s: %s: %w", path_, entryName, err)
	}

	return gtar.ListFiles(inner)
}

func findEntry(r io.Reader, prefix string) (name string, data []byte, err error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return "", nil, fmt.Errorf("no %s* entry found", prefix)
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed decoding outer tar: %w", err)
		}
		base := path.Base(header.Name)
		if header.Typeflag != tar.TypeReg || !strings.HasPrefix(base, prefix) {
			continue
		}
		buf, err := io.ReadAll(tr)
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		return base, buf, nil
	}
}

func decompress(entryName string, data []byte) (io.Reader, error) {
	switch {
	case strings.HasSuffix(entryName, ".zst"):
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, err
		}
		return &zstdReader{dec}, nil
	case strings.HasSuffix(entryName, ".gz"):
		return gzip.NewReader(bytes.NewReader(data))
	case strings.HasSuffix(entryName, ".bz2"):
		return bzip2.NewReader(bytes.NewReader(data)), nil
	case strings.HasSuffix(entryName, ".xz"), strings.HasSuffix(entryName, ".lz4"):
		return nil, fmt.Errorf("unsupported compression for %s", entryName)
	default:
		return bytes.NewReader(data), nil
	}
}

// zstdReader adapts *zstd.Decoder (which exposes Close without an error
// return) to io.Reader for decompress's uniform return type.
type zstdReader struct {
	*zstd.Decoder
}

func readKeyFiles(r io.Reader) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	keys := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed decoding metadata tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		buf, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		keys[path.Base(header.Name)] = bytes.TrimSpace(buf)
	}
	return keys, nil
}
