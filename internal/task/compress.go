package task

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// CompressZstd compresses inputPath to inputPath + ".zst" and removes the
// original on success. Returns the compressed path.
func CompressZstd(inputPath string) (string, error) {
	outputPath := inputPath + ".zst"

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	writer, err := zstd.NewWriter(outFile)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to compress file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to flush zstd writer: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return "", fmt.Errorf("failed to remove original file: %w", err)
	}

	return outputPath, nil
}

// GzipTo compresses inputPath into outputPath using parallel gzip and
// removes the original on success. Used to turn the base backup tars into
// their final .tar.gz artifacts.
func GzipTo(inputPath, outputPath string) error {
	inFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	writer := pgzip.NewWriter(outFile)
	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		return fmt.Errorf("failed to compress file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip writer: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return fmt.Errorf("failed to remove original file: %w", err)
	}

	return nil
}
