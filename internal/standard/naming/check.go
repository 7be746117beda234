// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cros.local/portage/internal/standard/version"
)

var categoryRe = regexp.MustCompile(`^[A-Za-z0-9+_][A-Za-z0-9+_.-]*$`)

// CheckCategory validates a category name: it must match the PMS category
// charset and contain at least one '-', with the single exception of the
// literal "virtual".
func CheckCategory(s string) error {
	if !categoryRe.MatchString(s) {
		return fmt.Errorf("invalid category name %q", s)
	}
	if s != "virtual" && !strings.Contains(s, "-") {
		return fmt.Errorf("invalid category name %q: missing '-'", s)
	}
	return nil
}

var packageRe = regexp.MustCompile(`^[A-Za-z0-9+_][A-Za-z0-9+_-]*$`)

// CheckPackage validates a package name (PN): it must not look like
// Manifest/metadata.xml, must not end in a version-like suffix, and must
// match the PMS package-name charset.
func CheckPackage(s string) error {
	if s == "Manifest" || s == "metadata.xml" {
		return fmt.Errorf("invalid package name %q", s)
	}
	if _, _, err := version.ExtractSuffix(s); err == nil {
		return errors.New("invalid package name: version-like suffix")
	}
	if !packageRe.MatchString(s) {
		return errors.New("invalid package name")
	}
	return nil
}

func CheckCategoryAndPackage(s string) error {
	v := strings.Split(s, "/")
	if len(v) != 2 {
		return errors.New("invalid package name")
	}
	if err := CheckCategory(v[0]); err != nil {
		return err
	}
	return CheckPackage(v[1])
}
