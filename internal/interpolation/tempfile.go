// internal/interpolation/tempfile.go
package interpolation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const sessionPrefix = "blurengine_"

// TempFileManager owns the scratch directories of one render session.
// Every backend call gets its own directory so concurrent calls never
// share files.
type TempFileManager struct {
	baseDir   string
	sessionID string

	mu    sync.Mutex
	calls int
}

// DiskUsage represents disk space information
type DiskUsage struct {
	TotalGB      float64
	UsedGB       float64
	AvailableGB  float64
	UsagePercent float64
}

// NewTempFileManager creates a new temporary file manager rooted at baseDir.
func NewTempFileManager(baseDir string) *TempFileManager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &TempFileManager{
		baseDir:   baseDir,
		sessionID: sessionPrefix + uuid.NewString(),
	}
}

// SessionID returns the session identifier.
func (tfm *TempFileManager) SessionID() string {
	return tfm.sessionID
}

// SessionDir returns the session directory path.
func (tfm *TempFileManager) SessionDir() string {
	return filepath.Join(tfm.baseDir, tfm.sessionID)
}

// CreateSessionDir creates the session directory and its frame subdirectories.
func (tfm *TempFileManager) CreateSessionDir() (string, error) {
	sessionDir := tfm.SessionDir()
	for _, subdir := range []string{"frames", "output", "calls"} {
		if err := os.MkdirAll(filepath.Join(sessionDir, subdir), 0755); err != nil {
			return "", fmt.Errorf("failed to create subdirectory %s: %v", subdir, err)
		}
	}
	return sessionDir, nil
}

// NewCallDir creates a fresh directory for a single backend invocation.
func (tfm *TempFileManager) NewCallDir(prefix string) (string, error) {
	tfm.mu.Lock()
	tfm.calls++
	tfm.mu.Unlock()

	dir := filepath.Join(tfm.SessionDir(), "calls", prefix+"_"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create call directory: %v", err)
	}
	return dir, nil
}

// Calls returns how many call directories were handed out.
func (tfm *TempFileManager) Calls() int {
	tfm.mu.Lock()
	defer tfm.mu.Unlock()
	return tfm.calls
}

// GetDiskUsage returns disk usage of the filesystem holding the base directory
func (tfm *TempFileManager) GetDiskUsage() (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(tfm.baseDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk usage: %v", err)
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bavail * uint64(stat.Bsize)
	usedBytes := totalBytes - freeBytes

	totalGB := float64(totalBytes) / (1024 * 1024 * 1024)
	usedGB := float64(usedBytes) / (1024 * 1024 * 1024)
	availableGB := float64(freeBytes) / (1024 * 1024 * 1024)
	usagePercent := 0.0
	if totalGB > 0 {
		usagePercent = (usedGB / totalGB) * 100
	}

	return &DiskUsage{
		TotalGB:      totalGB,
		UsedGB:       usedGB,
		AvailableGB:  availableGB,
		UsagePercent: usagePercent,
	}, nil
}

// CheckDiskSpace verifies there is room for estimatedUsageGB of frames.
func (tfm *TempFileManager) CheckDiskSpace(estimatedUsageGB float64) (bool, string, error) {
	diskUsage, err := tfm.GetDiskUsage()
	if err != nil {
		return false, "", err
	}

	if estimatedUsageGB > diskUsage.AvailableGB {
		return false, fmt.Sprintf("Insufficient disk space: need %.1fGB, available %.1fGB",
			estimatedUsageGB, diskUsage.AvailableGB), nil
	}

	return true, fmt.Sprintf("Sufficient disk space: %.1fGB available", diskUsage.AvailableGB), nil
}

// EstimateFrameStorageNeeds estimates the disk space for the extracted
// input frames plus the rendered output frames.
func EstimateFrameStorageNeeds(width, height, inputFrames, outputFrames int) float64 {
	// 16-bit RGB PNG, compressed to roughly 70%
	frameSize := float64(width*height*6) * 0.7

	inputGB := frameSize * float64(inputFrames) / (1024 * 1024 * 1024)
	outputGB := frameSize * float64(outputFrames) / (1024 * 1024 * 1024)
	overheadGB := (inputGB + outputGB) * 0.1

	return inputGB + outputGB + overheadGB
}

// CleanupSession removes all session data
func (tfm *TempFileManager) CleanupSession() error {
	if err := os.RemoveAll(tfm.SessionDir()); err != nil {
		return fmt.Errorf("failed to cleanup session %s: %v", tfm.sessionID, err)
	}
	return nil
}

// ListOldSessions finds sessions under baseDir older than olderThan
func ListOldSessions(baseDir string, olderThan time.Duration) ([]string, error) {
	cutoffTime := time.Now().Add(-olderThan)
	var oldSessions []string

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory: %v", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoffTime) {
			oldSessions = append(oldSessions, filepath.Join(baseDir, entry.Name()))
		}
	}

	sort.Strings(oldSessions)
	return oldSessions, nil
}

// CleanupOldSessions removes stale sessions and returns the directories removed.
func CleanupOldSessions(baseDir string, olderThan time.Duration) ([]string, error) {
	oldSessions, err := ListOldSessions(baseDir, olderThan)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, sessionDir := range oldSessions {
		if err := os.RemoveAll(sessionDir); err != nil {
			return removed, fmt.Errorf("failed to remove old session %s: %v", sessionDir, err)
		}
		removed = append(removed, sessionDir)
	}
	return removed, nil
}
