// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SkipDigestEnvKey opts an application out of `bundle install` skipping.
// Useful when a Gemfile sources logic or data from files the fingerprint
// does not track.
const SkipDigestEnvKey = "HEROKU_SKIP_BUNDLE_DIGEST"

// bundleDigestFiles are the application files whose contents feed the
// gems fingerprint.
var bundleDigestFiles = []string{"Gemfile", "Gemfile.lock"}

// BundleDigest fingerprints the inputs of `bundle install`: the user's
// environment plus the Gemfile and Gemfile.lock contents. When the digest
// is unchanged between builds, re-running the install cannot change its
// outcome and the gems layer is reused.
func BundleDigest(appDir string, environ []string) (string, error) {
	h := sha256.New()

	sorted := append([]string(nil), environ...)
	sort.Strings(sorted)
	for _, kv := range sorted {
		fmt.Fprintf(h, "env:%s\n", kv)
	}

	for _, name := range bundleDigestFiles {
		path := filepath.Join(appDir, name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(h, "file:%s:absent\n", name)
				continue
			}
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		fmt.Fprintf(h, "file:%s:", name)
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		f.Close()
		h.Write([]byte("\n"))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SkippedDigest returns a fingerprint that matches no stored value, so a
// build with SkipDigestEnvKey set always re-runs `bundle install`.
func SkippedDigest() string {
	return fmt.Sprintf("skipped-%d", time.Now().UnixNano())
}
