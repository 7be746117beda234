// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tar provides read-only inspection of tar archives, including the
// zstd-compressed tarballs nested inside gpkg binary-package containers.
package tar

import (
	"archive/tar"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// FileListItem describes one regular file, hard link, or symlink entry
// encountered while listing a tar archive.
type FileListItem struct {
	// tar.TypeReg, tar.TypeLink, tar.TypeSymlink, ...
	Type byte
	Path string
}

// ListFilesZstd lists the entries of a zstd-compressed tar stream, such as
// the CONTENTS-bearing tarball embedded in a binary package.
func ListFilesZstd(r io.Reader) ([]FileListItem, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return ListFiles(decoder)
}

// ListFiles lists the regular file, hard link, and symlink entries of a tar
// stream in archive order. Directory entries are skipped.
func ListFiles(r io.Reader) ([]FileListItem, error) {
	tarReader := tar.NewReader(r)

	var items []FileListItem
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed decoding tar: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeReg, tar.TypeLink, tar.TypeSymlink:
			items = append(items, FileListItem{header.Typeflag, header.Name})
		case tar.TypeDir:
			continue
		default:
			return nil, fmt.Errorf("unknown tar type %#x for %s", header.Typeflag, header.Name)
		}
	}

	return items, nil
}
