// internal/validation/validation.go
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"blurengine/internal/video"
)

// SupportedInputFormats defines all supported input video formats
var SupportedInputFormats = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".flv", ".wmv", ".m4v"}

// OutputSuffix is appended to the input name when no output path is given.
const OutputSuffix = " - blur"

// getSystemDirectories returns platform-specific system directories to protect
func getSystemDirectories() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			"C:\\Windows",
			"C:\\Program Files",
			"C:\\Program Files (x86)",
			"C:\\ProgramData",
		}
	case "darwin":
		return []string{"/System", "/usr", "/bin", "/sbin", "/etc", "/private/etc"}
	default:
		return []string{"/etc", "/usr", "/bin", "/sbin", "/boot", "/sys", "/proc"}
	}
}

// getMaxPathLength returns platform-specific maximum path length
func getMaxPathLength() int {
	switch runtime.GOOS {
	case "windows":
		return 260
	case "linux":
		return 4096
	default:
		return 1024
	}
}

// normalizePathForComparison normalizes paths for cross-platform comparison
func normalizePathForComparison(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(filepath.Clean(path))
	}
	return filepath.Clean(path)
}

// CleanPath trims whitespace and the quotes a file manager adds on drag and
// drop, and returns the absolute path.
func CleanPath(input string) string {
	cleanedPath := strings.TrimSpace(input)
	if len(cleanedPath) >= 2 {
		if (cleanedPath[0] == '\'' && cleanedPath[len(cleanedPath)-1] == '\'') ||
			(cleanedPath[0] == '"' && cleanedPath[len(cleanedPath)-1] == '"') {
			cleanedPath = cleanedPath[1 : len(cleanedPath)-1]
		}
	}
	cleanedPath = strings.TrimSpace(cleanedPath)
	if cleanedPath == "" {
		return ""
	}
	if absPath, err := filepath.Abs(cleanedPath); err == nil {
		return filepath.Clean(absPath)
	}
	return filepath.Clean(cleanedPath)
}

// ValidateInputPath checks that input names a readable, non-empty video file
// with a supported extension.
func ValidateInputPath(input string) error {
	cleanPath := CleanPath(input)
	if cleanPath == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if err := validatePathCharacters(cleanPath); err != nil {
		return err
	}

	fileInfo, err := os.Stat(cleanPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", cleanPath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %v", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("path points to a directory, not a file: %s", cleanPath)
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if !isSupported(ext) {
		return fmt.Errorf("unsupported file format: %s. Supported formats: %s",
			ext, strings.Join(SupportedInputFormats, ", "))
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return fmt.Errorf("cannot read file (permission denied): %v", err)
	}
	file.Close()
	return nil
}

func isSupported(ext string) bool {
	for _, supportedExt := range SupportedInputFormats {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// CheckVideo inspects probed properties. Problems that make rendering
// impossible are errors; the rest are returned as warnings.
func CheckVideo(info *video.VideoInfo) ([]string, error) {
	var warnings []string
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	if !info.FrameRate.Positive() {
		return nil, fmt.Errorf("video has no usable frame rate")
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("video has zero or invalid duration")
	}
	if info.FrameCount == 1 {
		warnings = append(warnings, "Video has a single frame, nothing will be blended")
	}
	if info.Duration > 3600 {
		warnings = append(warnings, "Video is very long (over 1 hour) - rendering may take significant time")
	}
	if info.Width*info.Height > 3840*2160 {
		warnings = append(warnings, "Resolution above 4K - frame storage and blending will be slow")
	}
	return warnings, nil
}

// DefaultOutputPath names the render next to its input, replacing the
// extension with container.
func DefaultOutputPath(input, container string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + OutputSuffix + "." + container
}

// ValidateOutputPath checks that output can be written. An existing
// directory is accepted and the default file name is placed inside it by
// ResolveOutputPath.
func ValidateOutputPath(outputPath string) error {
	cleanPath := CleanPath(outputPath)
	if cleanPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if err := validatePathCharacters(cleanPath); err != nil {
		return err
	}
	if err := validatePathSecurity(cleanPath); err != nil {
		return fmt.Errorf("security validation failed: %v", err)
	}
	if err := checkForNonExistentDirectory(outputPath, cleanPath); err != nil {
		return err
	}

	if stat, err := os.Stat(cleanPath); err == nil {
		if stat.IsDir() {
			return checkWritePermission(cleanPath)
		}
		if err := checkWritePermission(cleanPath); err != nil {
			return fmt.Errorf("cannot write to existing file: %v", err)
		}
	}

	parentDir := filepath.Dir(cleanPath)
	parentInfo, err := os.Stat(parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", parentDir)
		}
		return fmt.Errorf("cannot access output directory: %v", err)
	}
	if !parentInfo.IsDir() {
		return fmt.Errorf("output parent path is not a directory: %s", parentDir)
	}
	if err := checkWritePermission(parentDir); err != nil {
		return fmt.Errorf("cannot write to output directory: %v", err)
	}
	return nil
}

// ResolveOutputPath returns the file the render is written to. An empty
// output selects DefaultOutputPath and a directory receives the default
// file name.
func ResolveOutputPath(input, output, container string) (string, error) {
	if strings.TrimSpace(output) == "" {
		output = DefaultOutputPath(CleanPath(input), container)
	} else if stat, err := os.Stat(CleanPath(output)); err == nil && stat.IsDir() {
		output = filepath.Join(CleanPath(output), filepath.Base(DefaultOutputPath(CleanPath(input), container)))
	}
	if err := ValidateOutputPath(output); err != nil {
		return "", err
	}
	resolved := CleanPath(output)
	if resolved == CleanPath(input) {
		return "", fmt.Errorf("output would overwrite the input: %s", resolved)
	}
	return resolved, nil
}

// checkWritePermission tests if we can write to a file or directory
func checkWritePermission(path string) error {
	tempFile := filepath.Join(path, ".blurengine_write_test")
	if stat, err := os.Stat(path); err != nil || !stat.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		tempFile = filepath.Join(filepath.Dir(path), ".blurengine_write_test")
	}

	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("no write permission: %v", err)
	}
	file.Close()
	os.Remove(tempFile)
	return nil
}

// validatePathSecurity performs additional security checks
func validatePathSecurity(absPath string) error {
	maxLen := getMaxPathLength()
	if len(absPath) > maxLen {
		return fmt.Errorf("path too long (max %d characters)", maxLen)
	}

	normalizedPath := normalizePathForComparison(absPath)
	for _, sysDir := range getSystemDirectories() {
		normalizedSysDir := normalizePathForComparison(sysDir)
		if normalizedPath == normalizedSysDir || strings.HasPrefix(normalizedPath, normalizedSysDir+string(filepath.Separator)) {
			return fmt.Errorf("cannot write to system directory: %s", sysDir)
		}
	}
	return nil
}

// validatePathCharacters checks for invalid characters based on OS
func validatePathCharacters(path string) error {
	if runtime.GOOS == "windows" {
		// The volume colon is legal.
		rest := strings.TrimPrefix(path, filepath.VolumeName(path))
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return fmt.Errorf("path contains invalid character: %s", char)
			}
		}

		baseName := strings.ToUpper(filepath.Base(path))
		if idx := strings.LastIndex(baseName, "."); idx != -1 {
			baseName = baseName[:idx]
		}
		reservedNames := []string{
			"CON", "PRN", "AUX", "NUL",
			"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
			"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
		}
		for _, reserved := range reservedNames {
			if baseName == reserved {
				return fmt.Errorf("path uses reserved Windows name: %s", reserved)
			}
		}
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes")
	}
	return nil
}

// checkForNonExistentDirectory checks if a path looks like a directory but doesn't exist
func checkForNonExistentDirectory(originalPath, cleanedPath string) error {
	if _, err := os.Stat(cleanedPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access path: %v", err)
	}

	if looksLikeDirectory(originalPath) {
		return fmt.Errorf("path '%s' looks like a directory but doesn't exist. Please either:\n  • Create the directory first, or\n  • Provide a filename (e.g., 'my_video.mp4')", originalPath)
	}
	return nil
}

// looksLikeDirectory reports whether a path that does not exist was meant
// as a directory: a trailing separator or a bare name without extension.
func looksLikeDirectory(path string) bool {
	path = strings.TrimSpace(path)
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return true
	}
	return filepath.Ext(filepath.Base(path)) == ""
}
