package main

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// encode picks the image format from the file extension.
func encode(w io.Writer, name string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	}
	return errors.Errorf("unsupported snapshot format %q", filepath.Ext(name))
}

func writeSnapshot(name string, img *image.RGBA) error {
	if img == nil {
		return errors.New("no frame was read back")
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := encode(f, name, img); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	return f.Close()
}
