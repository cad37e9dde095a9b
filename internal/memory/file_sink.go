package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink 把每个会话写成 <dir>/memory_<session>.json。写入先落到临时文件，
// Close 时同步并原子替换。
type FileSink struct {
	dir string
}

// NewFileSink 创建文件后端，目录不存在时自动创建。
func NewFileSink(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建记忆目录失败: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Path 返回会话对应的文件路径。
func (f *FileSink) Path(sessionID string) string {
	return filepath.Join(f.dir, "memory_"+sanitize(sessionID)+".json")
}

// Open 创建临时文件作为写入句柄。
func (f *FileSink) Open(_ context.Context, sessionID string) (Writer, error) {
	tmp, err := os.CreateTemp(f.dir, ".memory-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	return &fileWriter{tmp: tmp, target: f.Path(sessionID)}, nil
}

// Load 读取此前持久化的快照。
func (f *FileSink) Load(sessionID string) (Snapshot, error) {
	raw, err := os.ReadFile(f.Path(sessionID))
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("解析记忆文件失败: %w", err)
	}
	return snap, nil
}

type fileWriter struct {
	tmp     *os.File
	target  string
	written bool
}

func (w *fileWriter) Write(_ context.Context, snapshot Snapshot) error {
	enc := json.NewEncoder(w.tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("序列化记忆状态失败: %w", err)
	}
	w.written = true
	return nil
}

func (w *fileWriter) Close() error {
	name := w.tmp.Name()
	syncErr := w.tmp.Sync()
	closeErr := w.tmp.Close()
	if !w.written || syncErr != nil || closeErr != nil {
		_ = os.Remove(name)
		return errors.Join(syncErr, closeErr)
	}
	if err := os.Rename(name, w.target); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("替换记忆文件失败: %w", err)
	}
	return nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
