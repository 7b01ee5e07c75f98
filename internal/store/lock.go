package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cadrianmae/gencast/internal/logger"
)

// Lock 是数据目录上的运行锁，防止多个实例同时写同一目录。
type Lock struct {
	path string
	fl   *flock.Flock
}

// AcquireLock 获取数据目录的运行锁，已被占用时立即返回错误。
func AcquireLock(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	lockPath := filepath.Join(dataDir, "gencast.lock")
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取运行锁失败: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("数据目录 %s 正被另一个 gencast 进程使用", dataDir)
	}

	logger.Debugf("[store] 已获取运行锁: %s", lockPath)
	return &Lock{path: lockPath, fl: fl}, nil
}

// Release 释放运行锁。
func (l *Lock) Release() {
	if err := l.fl.Unlock(); err != nil {
		logger.Warnf("[store] 释放运行锁失败: %v", err)
	}
}
