package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const thumbnailMaxDim = 512

// Thumbnail renders a webp thumbnail next to a stored reference image and
// returns the thumbnail filename. The original is left untouched.
func (ls *LocalStorage) Thumbnail(filename string) (string, error) {
	srcPath := ls.GetFilePath(filename)

	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos)

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	thumbName := base + "_thumb.webp"
	dst, err := os.Create(filepath.Join(ls.basePath, thumbName))
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail: %w", err)
	}
	defer dst.Close()

	if err := webp.Encode(dst, thumb, &webp.Options{Quality: 80}); err != nil {
		os.Remove(filepath.Join(ls.basePath, thumbName))
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return thumbName, nil
}
