// Package store 持久化已生成的播客节目记录。
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/logger"
)

// Episode 一期已生成节目的记录。
type Episode struct {
	ID           string
	Title        string
	Style        string
	AudioPath    string
	SubtitlePath string
	DurationMs   int64
	SegmentCount int
	FailedCount  int
	// Timeline 记录每个分段在成品中的时间区间，失败时为 nil。
	Timeline  *audio.TimelineIndex
	CreatedAt time.Time
}

// Store 使用 SQLite 持久化节目历史。
type Store struct {
	db *sql.DB
}

// Open 打开节目历史数据库，不存在则创建。
// dataDir: 数据目录路径，SQLite 文件存放在此目录下。
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	dbPath := filepath.Join(dataDir, "episodes.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// 设置 WAL 模式和外键约束
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("启用外键约束失败: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debugf("[store] 节目历史已打开 (db=%s)", dbPath)
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			style TEXT DEFAULT '',
			audio_path TEXT NOT NULL,
			subtitle_path TEXT DEFAULT '',
			duration_ms INTEGER DEFAULT 0,
			segment_count INTEGER DEFAULT 0,
			failed_count INTEGER DEFAULT 0,
			timeline TEXT DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at);
	`)
	if err != nil {
		return fmt.Errorf("创建数据表失败: %w", err)
	}
	return nil
}

// Add 写入一条节目记录。ID 为空时自动生成，返回最终 ID。
func (s *Store) Add(ep Episode) (string, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}

	var timelineJSON string
	if ep.Timeline != nil {
		data, err := json.Marshal(ep.Timeline)
		if err != nil {
			return "", fmt.Errorf("序列化时间轴失败: %w", err)
		}
		timelineJSON = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (id, title, style, audio_path, subtitle_path,
			duration_ms, segment_count, failed_count, timeline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.Title, ep.Style, ep.AudioPath, ep.SubtitlePath,
		ep.DurationMs, ep.SegmentCount, ep.FailedCount, timelineJSON,
		ep.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("写入节目记录失败: %w", err)
	}
	return ep.ID, nil
}

// Get 根据 ID 获取节目记录，不存在返回 nil。
func (s *Store) Get(id string) (*Episode, error) {
	row := s.db.QueryRow(`
		SELECT id, title, style, audio_path, subtitle_path,
			duration_ms, segment_count, failed_count, timeline, created_at
		FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询节目记录失败: %w", err)
	}
	return ep, nil
}

// List 按时间倒序列出最近的节目记录。limit <= 0 表示不限制。
func (s *Store) List(limit int) ([]Episode, error) {
	query := `
		SELECT id, title, style, audio_path, subtitle_path,
			duration_ms, segment_count, failed_count, timeline, created_at
		FROM episodes ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("列出节目记录失败: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("读取节目记录失败: %w", err)
		}
		episodes = append(episodes, *ep)
	}
	return episodes, rows.Err()
}

// Delete 删除一条节目记录，只删记录不动音频文件。
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM episodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("删除节目记录失败: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("节目 %s 不存在", id)
	}
	return nil
}

// Close 关闭数据库。
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner 兼容 *sql.Row 和 *sql.Rows。
type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (*Episode, error) {
	var ep Episode
	var timelineJSON, createdAt string
	err := row.Scan(&ep.ID, &ep.Title, &ep.Style, &ep.AudioPath, &ep.SubtitlePath,
		&ep.DurationMs, &ep.SegmentCount, &ep.FailedCount, &timelineJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	if timelineJSON != "" {
		var idx audio.TimelineIndex
		if err := json.Unmarshal([]byte(timelineJSON), &idx); err != nil {
			logger.Warnf("[store] 解析节目 %s 的时间轴失败: %v", ep.ID, err)
		} else {
			ep.Timeline = &idx
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		ep.CreatedAt = t.Local()
	}
	return &ep, nil
}
