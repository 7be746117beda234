// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package repository resolves the repository name of an on-disk ebuild tree,
// the way Portage itself does: profiles/repo_name first, then the
// layout.conf repo-name key, then a generated fallback.
package repository

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ResolveName returns the repository name for the ebuild tree rooted at
// rootDir, following the same precedence PMS mandates for profiles/repo_name
// but tolerating overlays that only populate layout.conf, or neither.
func ResolveName(rootDir string) (string, error) {
	layout, err := readLayoutConf(filepath.Join(rootDir, "metadata", "layout.conf"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	name, err := readSingleLineFile(filepath.Join(rootDir, "profiles", "repo_name"))
	if errors.Is(err, fs.ErrNotExist) {
		// PMS mandates repo_name to exist, but overlays often miss it.
		name = layout["repo-name"]
	} else if err != nil {
		return "", err
	}

	if name == "" {
		name = fmt.Sprintf("x-%s", filepath.Base(rootDir))
	}
	return name, nil
}

func readSingleLineFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readLayoutConf(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kvs := make(map[string]string)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		segments := strings.SplitN(line, "=", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("%s: corrupted format", path)
		}
		key := strings.TrimSpace(segments[0])
		value := strings.TrimSpace(segments[1])
		kvs[key] = value
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kvs, nil
}
