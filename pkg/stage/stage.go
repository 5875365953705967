// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stage archives a snapshot of the experiment directory into the
// run's output directory, so a finished run can always be traced back to the
// exact code that produced it.
package stage

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/pkg/errors"

	"launch-toolkit/pkg/logging"
	"launch-toolkit/pkg/shell"
)

// DefaultIgnorePatterns are always excluded from the snapshot.
var DefaultIgnorePatterns = []string{
	".git",
	"checkpoints",
	"wandb",
	"__pycache__",
	"node_modules",
	"vendor",
	"*.log",
	"tmp/",
	".DS_Store",
}

// Snapshot archives sourceDir into a tar.gz under outputDir, filtered by the
// default ignore patterns plus any .launchignore file found in sourceDir. The
// archive name carries a random suffix so concurrent runs sharing an output
// directory never clobber each other's snapshot. It returns the archive path.
func Snapshot(sourceDir, outputDir, jobName string) (string, error) {
	matcher, err := ReadIgnorePatterns(sourceDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %q", outputDir)
	}

	archivePath := filepath.Join(outputDir, fmt.Sprintf("%s-code-%s.tar.gz", jobName, shell.RandomString(6)))
	if err := writeFilteredTar(sourceDir, archivePath, matcher); err != nil {
		return "", err
	}

	logging.Info("Staged code snapshot of %s at %s", sourceDir, archivePath)
	return archivePath, nil
}

// ReadIgnorePatterns builds the pattern matcher from the default patterns and
// the optional .launchignore file in dir.
func ReadIgnorePatterns(dir string) (*patternmatcher.PatternMatcher, error) {
	ignorePath := filepath.Join(dir, ".launchignore")

	patterns := make([]string, len(DefaultIgnorePatterns))
	copy(patterns, DefaultIgnorePatterns)

	if _, err := os.Stat(ignorePath); err == nil {
		file, err := os.Open(ignorePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open .launchignore file %q", ignorePath)
		}
		defer file.Close()

		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read .launchignore file %q", ignorePath)
		}
		patterns = append(patterns, filePatterns...)
		logging.Debug("Found %d patterns in .launchignore at %q", len(filePatterns), ignorePath)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat .launchignore file %q", ignorePath)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pattern matcher")
	}
	return matcher, nil
}

// processTarEntry processes a single file or directory for archive creation.
func processTarEntry(tarWriter *tar.Writer, sourceDir string, matcher *patternmatcher.PatternMatcher, path string, info fs.FileInfo, errFromWalk error) error {
	if errFromWalk != nil {
		return errFromWalk
	}

	relPath, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return errors.Wrapf(err, "failed to get relative path for %q", path)
	}

	if relPath == "." {
		return nil
	}

	// Directory paths need a trailing slash for parent matching,
	// logic from patterns.go in moby/patternmatcher.
	relPathSlash := filepath.ToSlash(relPath)
	if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}

	ignored, err := matcher.MatchesOrParentMatches(relPathSlash)
	if err != nil {
		return errors.Wrapf(err, "failed to check ignore patterns for %q", path)
	}

	if ignored {
		if info.IsDir() {
			logging.Debug("Ignoring directory %q", relPath)
			return filepath.SkipDir
		}
		logging.Debug("Ignoring file %q", relPath)
		return nil
	}

	header, err := tar.FileInfoHeader(info, relPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create tar header for %q", path)
	}
	header.Name = relPath

	if err := tarWriter.WriteHeader(header); err != nil {
		return errors.Wrapf(err, "failed to write tar header for %q", path)
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open file %q", path)
		}
		defer file.Close()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return errors.Wrapf(err, "failed to write file content for %q", path)
		}
	}

	return nil
}

func writeFilteredTar(sourceDir, archivePath string, matcher *patternmatcher.PatternMatcher) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create archive file %q", archivePath)
	}
	defer archive.Close()

	gzipWriter := gzip.NewWriter(archive)
	tarWriter := tar.NewWriter(gzipWriter)

	logging.Debug("Creating filtered tar from %s at %s", sourceDir, archivePath)

	walkErr := filepath.Walk(sourceDir, func(path string, info fs.FileInfo, err error) error {
		return processTarEntry(tarWriter, sourceDir, matcher, path, info, err)
	})

	// Close writers before judging the result so buffered data is flushed.
	if closeErr := tarWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = errors.Wrap(closeErr, "failed to close tar writer")
	}
	if closeErr := gzipWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = errors.Wrap(closeErr, "failed to close gzip writer")
	}

	if walkErr != nil {
		os.Remove(archivePath)
		return walkErr
	}

	return nil
}
