// Command mkfs builds the raw disk image cmd/qemurun hands to QEMU's
// virtio-blk device. The on-disk filesystem and log are out of this
// port's scope (spec.md §1: "the on-disk filesystem and log (fs, log)"
// are external collaborators), so the image this tool produces is not
// xv7's inode/log format — it's a flat table of (name, block offset,
// byte length) entries followed by each binary's raw bytes, block-
// aligned. internal/bio's buffer cache and internal/virtio's
// BlockDevice only ever see block reads and writes; they don't care
// what's inside them.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/sprout-os/sprout/internal/virtio"
)

// Manifest describes the image mkfs should build.
type Manifest struct {
	// Blocks reserves the image's total size; 0 means size it to fit
	// the binaries plus the directory with no slack.
	Blocks int `yaml:"blocks"`

	// Binaries lists host paths to embed, in the order they land in
	// the directory.
	Binaries []BinaryEntry `yaml:"binaries"`
}

type BinaryEntry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// direntSize is one directory entry's on-disk encoding: a 14-byte
// name field (xv7's DIRSIZ), a uint32 starting block, a uint32 byte
// length.
const direntSize = 14 + 4 + 4
const dirsiz = 14

func main() {
	manifestPath := flag.String("manifest", "", "path to the image manifest (YAML)")
	out := flag.String("out", "disk.img", "output image path")
	flag.Parse()

	if err := run(*manifestPath, *out); err != nil {
		slog.Error("mkfs failed", "error", err)
		os.Exit(1)
	}
}

func run(manifestPath, outPath string) error {
	if manifestPath == "" {
		return fmt.Errorf("-manifest is required")
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest %q: %w", manifestPath, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest %q: %w", manifestPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create image %q: %w", outPath, err)
	}
	defer out.Close()

	return build(out, m)
}

// build lays out one directory block followed by each binary's bytes,
// block-aligned, then pads the image to a whole number of blocks:
// m.Blocks if set, otherwise just enough to hold every binary.
func build(w io.WriteSeeker, m Manifest) error {
	if len(m.Binaries) > virtio.BlockSize/direntSize {
		return fmt.Errorf("%d binaries exceed the %d entries one directory block holds", len(m.Binaries), virtio.BlockSize/direntSize)
	}

	dir := make([]byte, virtio.BlockSize)
	nextBlock := uint32(1) // block 0 is the directory
	dataEnd := int64(virtio.BlockSize)

	bar := progressbar.Default(int64(len(m.Binaries)), "packing binaries")
	for i, bin := range m.Binaries {
		if len(bin.Name) >= dirsiz {
			return fmt.Errorf("binary name %q exceeds %d bytes", bin.Name, dirsiz-1)
		}

		f, err := os.Open(bin.Path)
		if err != nil {
			return fmt.Errorf("open %q: %w", bin.Path, err)
		}

		if _, err := w.Seek(int64(nextBlock)*virtio.BlockSize, io.SeekStart); err != nil {
			f.Close()
			return fmt.Errorf("seek to block %d: %w", nextBlock, err)
		}

		n, err := io.Copy(w, io.TeeReader(f, bar))
		f.Close()
		if err != nil {
			return fmt.Errorf("copy %q into image: %w", bin.Path, err)
		}

		ent := dir[i*direntSize : (i+1)*direntSize]
		copy(ent[:dirsiz], bin.Name)
		binary.LittleEndian.PutUint32(ent[dirsiz:dirsiz+4], nextBlock)
		binary.LittleEndian.PutUint32(ent[dirsiz+4:dirsiz+8], uint32(n))

		dataEnd = int64(nextBlock)*virtio.BlockSize + n
		blocksUsed := (n + virtio.BlockSize - 1) / virtio.BlockSize
		nextBlock += uint32(blocksUsed)
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to directory block: %w", err)
	}
	if _, err := w.Write(dir); err != nil {
		return fmt.Errorf("write directory block: %w", err)
	}

	blocks := nextBlock
	if m.Blocks > 0 {
		if uint32(m.Blocks) < nextBlock {
			return fmt.Errorf("manifest requests %d blocks, binaries need at least %d", m.Blocks, nextBlock)
		}
		blocks = uint32(m.Blocks)
	}
	if end := int64(blocks) * virtio.BlockSize; end > dataEnd {
		if _, err := w.Seek(end-1, io.SeekStart); err != nil {
			return fmt.Errorf("seek to pad image to %d blocks: %w", blocks, err)
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return fmt.Errorf("pad image to %d blocks: %w", blocks, err)
		}
	}

	slog.Info("image built", "binaries", len(m.Binaries), "blocks", nextBlock)
	return nil
}
