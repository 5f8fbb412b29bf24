package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// sqlite数据库文件的魔数头，备份校验依据
var sqliteMagic = []byte("SQLite format 3\x00")

var (
	ErrNotSQLite      = errors.New("数据库文件不是有效的sqlite文件")
	ErrBackupNotFound = errors.New("备份文件不存在")
	ErrInvalidBackup  = errors.New("备份文件校验失败")
	ErrBackupName     = errors.New("非法的备份文件名")
	ErrSQLiteOnly     = errors.New("备份功能仅支持sqlite数据库")
)

// Manager sqlite数据库备份管理器
// 备份为原库文件的gzip压缩副本，恢复前先为当前库留安全副本
type Manager struct {
	dbPath   string
	dir      string
	keepDays int
	compress bool
	logger   *zap.Logger

	now func() time.Time
}

func NewManager(dbPath, dir string, keepDays int, compress bool, logger *zap.Logger) *Manager {
	return &Manager{
		dbPath:   dbPath,
		dir:      dir,
		keepDays: keepDays,
		compress: compress,
		logger:   logger,
		now:      time.Now,
	}
}

// Info 单个备份文件信息
type Info struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats 备份目录汇总
type Stats struct {
	Count      int        `json:"count"`
	TotalBytes int64      `json:"total_bytes"`
	Latest     *time.Time `json:"latest,omitempty"`
	Dir        string     `json:"dir"`
	KeepDays   int        `json:"keep_days"`
}

// Create 创建一份新备份
func (m *Manager) Create() (*Info, error) {
	src, err := os.Open(m.dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库文件失败: %w", err)
	}
	defer src.Close()

	// 备份前确认源文件确实是sqlite库
	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(src, header); err != nil || !bytes.Equal(header, sqliteMagic) {
		return nil, ErrNotSQLite
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", m.now().Format("20060102_150405"))
	if m.compress {
		name += ".gz"
	}
	path := filepath.Join(m.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建备份文件失败: %w", err)
	}
	defer dst.Close()

	if m.compress {
		gw := gzip.NewWriter(dst)
		if _, err := io.Copy(gw, src); err != nil {
			gw.Close()
			os.Remove(path)
			return nil, fmt.Errorf("写入备份失败: %w", err)
		}
		if err := gw.Close(); err != nil {
			os.Remove(path)
			return nil, err
		}
	} else {
		if _, err := io.Copy(dst, src); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("写入备份失败: %w", err)
		}
	}

	stat, err := dst.Stat()
	if err != nil {
		return nil, err
	}

	m.logger.Info("数据库备份完成",
		zap.String("file", name),
		zap.Int64("size", stat.Size()))

	return &Info{
		Name:       name,
		SizeBytes:  stat.Size(),
		Compressed: m.compress,
		CreatedAt:  stat.ModTime(),
	}, nil
}

// List 列出全部备份，按时间倒序
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "backup_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:       e.Name(),
			SizeBytes:  info.Size(),
			Compressed: strings.HasSuffix(e.Name(), ".gz"),
			CreatedAt:  info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// resolve 校验备份名并拼出绝对路径，拒绝路径穿越
func (m *Manager) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasPrefix(name, "backup_") {
		return "", ErrBackupName
	}
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrBackupNotFound
		}
		return "", err
	}
	return path, nil
}

// Path 返回指定备份的文件路径，供下载接口使用
func (m *Manager) Path(name string) (string, error) {
	return m.resolve(name)
}

// Verify 校验备份内容确为sqlite库
func (m *Manager) Verify(name string) error {
	path, err := m.resolve(name)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return ErrInvalidBackup
		}
		defer gr.Close()
		r = gr
	}

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(r, header); err != nil || !bytes.Equal(header, sqliteMagic) {
		return ErrInvalidBackup
	}
	return nil
}

// Restore 用指定备份覆盖当前数据库
// 覆盖前先把当前库复制为pre_restore安全副本，恢复失败时可回退
func (m *Manager) Restore(name string) error {
	if err := m.Verify(name); err != nil {
		return err
	}
	path, err := m.resolve(name)
	if err != nil {
		return err
	}

	safety := m.dbPath + ".pre_restore_" + m.now().Format("20060102_150405")
	if err := copyFile(m.dbPath, safety); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("创建安全副本失败: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = src
	if strings.HasSuffix(name, ".gz") {
		gr, err := gzip.NewReader(src)
		if err != nil {
			return ErrInvalidBackup
		}
		defer gr.Close()
		r = gr
	}

	dst, err := os.Create(m.dbPath)
	if err != nil {
		return fmt.Errorf("写入数据库文件失败: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("恢复备份失败: %w", err)
	}

	m.logger.Info("数据库恢复完成",
		zap.String("backup", name),
		zap.String("safety_copy", safety))
	return nil
}

// Cleanup 删除超过保留天数的备份，返回删除数量
func (m *Manager) Cleanup() (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -m.keepDays)
	removed := 0
	for _, b := range backups {
		if b.CreatedAt.Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, b.Name)); err != nil {
				m.logger.Warn("删除过期备份失败", zap.String("file", b.Name), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("过期备份清理完成", zap.Int("removed", removed))
	}
	return removed, nil
}

// Stats 备份目录汇总信息
func (m *Manager) Stats() (*Stats, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Count:    len(backups),
		Dir:      m.dir,
		KeepDays: m.keepDays,
	}
	for _, b := range backups {
		stats.TotalBytes += b.SizeBytes
	}
	if len(backups) > 0 {
		stats.Latest = &backups[0].CreatedAt
	}
	return stats, nil
}

// StartScheduler 启动定时备份，按间隔创建备份并清理过期文件
func (m *Manager) StartScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Create(); err != nil {
					m.logger.Error("定时备份失败", zap.Error(err))
					continue
				}
				if _, err := m.Cleanup(); err != nil {
					m.logger.Error("备份清理失败", zap.Error(err))
				}
			}
		}
	}()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
