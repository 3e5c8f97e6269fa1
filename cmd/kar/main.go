// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command kar packs a directory of compiled shaders into a kar archive,
// lists an archive or extracts it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/triangle/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given into -d")
	list     = flag.String("l", "", "List the archive given")
	compress = flag.String("c", "", "Compress the given folder")
	dstFile  = flag.String("f", "out.kar", "Destination file")
	dstDir   = flag.String("d", ".", "Destination directory when extracting")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *list, *compress} {
		if op != "" {
			ops++
		}
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *compress != "":
		err = compressDir(*compress, *dstFile, kar.Header{
			Author:      *author,
			DateCreated: time.Now().Unix(),
			Version:     *version,
		})
	case *extract != "":
		err = extractArchive(*extract, *dstDir)
	case *list != "":
		err = listArchive(os.Stdout, *list)
	default:
		flag.PrintDefaults()
		return
	}
	if err != nil {
		log.WithError(err).Fatal("kar failed")
	}
}

// compressDir adds every regular file under dir, named by its slash
// separated path relative to dir.
func compressDir(dir, dst string, header kar.Header) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("%s exists, will not overwrite", dst)
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", dir)
	}

	builder, err := kar.NewBuilder(header)
	if err != nil {
		return err
	}
	defer builder.Close()

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := addFile(builder, filepath.ToSlash(rel), path); err != nil {
			return err
		}
		log.WithField("file", rel).Debug("added")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := builder.WriteTo(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	log.WithFields(log.Fields{"files": len(files), "bytes": n, "archive": dst}).Info("archive written")
	return out.Close()
}

func addFile(builder *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return builder.Add(name, f)
}

func openArchive(file string) (*kar.Archive, io.Closer, error) {
	r, err := mmap.Open(file)
	if err != nil {
		return nil, nil, err
	}
	archive, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, errors.Wrap(err, file)
	}
	return archive, r, nil
}

func listArchive(w io.Writer, file string) error {
	archive, closer, err := openArchive(file)
	if err != nil {
		return err
	}
	defer closer.Close()

	header := archive.Header()
	fmt.Fprintf(w, "author: %s, version: %d, created: %s\n",
		header.Author, header.Version, time.Unix(header.DateCreated, 0).UTC().Format(time.RFC3339))
	for _, e := range header.Index {
		fmt.Fprintf(w, "%10d %10d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}

func extractArchive(file, dir string) error {
	archive, closer, err := openArchive(file)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, name := range archive.Names() {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if rel, err := filepath.Rel(dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return errors.Errorf("%s escapes %s", name, dir)
		}
		data, err := archive.ReadAll(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.WithField("file", path).Debug("extracted")
	}
	return nil
}
