package synth

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cadrianmae/gencast/internal/logger"
)

// CacheEntry 缓存索引中的一条记录。
type CacheEntry struct {
	Engine     string `json:"engine"`
	Text       string `json:"text"`
	Samples    int    `json:"samples"`
	SampleRate int    `json:"sample_rate"`
	Size       int64  `json:"size"`
	CachedAt   string `json:"cached_at"`
	LastUsed   string `json:"last_used"`
}

// Cache 管理合成分段的磁盘缓存和索引。
// 同一引擎音色下相同的台词只需调用一次 TTS，重新生成节目时直接复用。
type Cache struct {
	mu       sync.RWMutex
	cacheDir string
	maxSize  int64 // 最大缓存大小（字节），0 表示禁用缓存
	index    map[string]*CacheEntry
}

// NewCache 创建合成缓存管理器。
// cacheDir 为缓存目录路径，maxSizeMB 为最大缓存大小（MB），0 表示禁用缓存。
func NewCache(cacheDir string, maxSizeMB int64) (*Cache, error) {
	if maxSizeMB == 0 {
		return &Cache{
			cacheDir: cacheDir,
			maxSize:  0,
			index:    make(map[string]*CacheEntry),
		}, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("[synth] 创建缓存目录失败: %w", err)
	}

	c := &Cache{
		cacheDir: cacheDir,
		maxSize:  maxSizeMB * 1024 * 1024,
		index:    make(map[string]*CacheEntry),
	}

	if err := c.loadIndex(); err != nil {
		logger.Warnf("[synth] 加载缓存索引失败（将使用空索引）: %v", err)
	}

	// 校验索引：移除本地文件不存在的条目
	c.validateIndex()

	return c, nil
}

// Enabled 返回缓存是否启用。
func (c *Cache) Enabled() bool {
	return c != nil && c.maxSize > 0
}

// cacheKey 由引擎标识和台词文本生成缓存键。
// 引擎标识包含音色，两位主持人念同一句话不会互相污染。
func cacheKey(engine, text string) string {
	sum := sha256.Sum256([]byte(engine + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Lookup 查找缓存的合成分段，命中时返回单声道样本和采样率。
func (c *Cache) Lookup(engine, text string) ([]float32, int, bool) {
	if !c.Enabled() {
		return nil, 0, false
	}
	key := cacheKey(engine, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[key]
	if !ok {
		return nil, 0, false
	}

	data, err := os.ReadFile(c.filePath(key))
	if err != nil {
		delete(c.index, key)
		c.saveIndexLocked()
		return nil, 0, false
	}

	entry.LastUsed = time.Now().Format(time.RFC3339)
	c.saveIndexLocked()

	return decodeSamples(data), entry.SampleRate, true
}

// Store 将合成好的分段写入缓存。
// 先写 .tmp 再改名，避免中断留下半截文件。
func (c *Cache) Store(engine, text string, mono []float32, sampleRate int) error {
	if !c.Enabled() {
		return nil
	}
	key := cacheKey(engine, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	data := encodeSamples(mono)
	finalPath := c.filePath(key)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("[synth] 写缓存文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("[synth] 缓存文件改名失败: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	c.index[key] = &CacheEntry{
		Engine:     engine,
		Text:       text,
		Samples:    len(mono),
		SampleRate: sampleRate,
		Size:       int64(len(data)),
		CachedAt:   now,
		LastUsed:   now,
	}

	if err := c.saveIndexLocked(); err != nil {
		return fmt.Errorf("[synth] 保存缓存索引失败: %w", err)
	}

	c.evictLocked()

	logger.Debugf("[synth] 已缓存分段: %s（%d 样本，%d 字节）", engine, len(mono), len(data))
	return nil
}

// List 返回所有缓存条目，按 last_used 倒序排列。
func (c *Cache) List() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make([]CacheEntry, 0, len(c.index))
	for _, entry := range c.index {
		results = append(results, *entry)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].LastUsed > results[j].LastUsed
	})

	return results
}

// Clear 删除全部缓存条目和文件，返回删除的条目数量。
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.index {
		if err := os.Remove(c.filePath(key)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("[synth] 删除缓存文件失败: %s: %v", c.filePath(key), err)
			continue
		}
		delete(c.index, key)
		removed++
	}

	if removed > 0 {
		c.saveIndexLocked()
	}

	return removed
}

// CacheDir 返回缓存目录路径。
func (c *Cache) CacheDir() string {
	return c.cacheDir
}

func (c *Cache) filePath(key string) string {
	return filepath.Join(c.cacheDir, key+".pcm")
}

// loadIndex 从磁盘加载缓存索引。
func (c *Cache) loadIndex() error {
	indexPath := filepath.Join(c.cacheDir, "cache_index.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &c.index)
}

// saveIndexLocked 持久化缓存索引（调用方需持有锁）。
func (c *Cache) saveIndexLocked() error {
	indexPath := filepath.Join(c.cacheDir, "cache_index.json")
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, data, 0644)
}

// validateIndex 校验索引，移除本地文件不存在的条目。
func (c *Cache) validateIndex() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.index {
		if _, err := os.Stat(c.filePath(key)); err != nil {
			delete(c.index, key)
			removed++
		}
	}

	if removed > 0 {
		logger.Infof("[synth] 索引校验：移除 %d 个无效条目", removed)
		c.saveIndexLocked()
	}

	logger.Debugf("[synth] 合成缓存已加载: %d 个分段, 目录 %s", len(c.index), c.cacheDir)
}

// evictLocked 检查缓存总大小并淘汰最久未使用的（调用方需持有锁）。
func (c *Cache) evictLocked() {
	if c.maxSize <= 0 {
		return
	}

	var totalSize int64
	for _, entry := range c.index {
		totalSize += entry.Size
	}

	if totalSize <= c.maxSize {
		return
	}

	// 按 last_used 升序排列，先淘汰最久未使用的
	type keyEntry struct {
		key   string
		entry *CacheEntry
	}
	var entries []keyEntry
	for k, v := range c.index {
		entries = append(entries, keyEntry{key: k, entry: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.LastUsed < entries[j].entry.LastUsed
	})

	for _, ke := range entries {
		if totalSize <= c.maxSize {
			break
		}

		if err := os.Remove(c.filePath(ke.key)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("[synth] 删除缓存文件失败: %s: %v", c.filePath(ke.key), err)
			continue
		}

		totalSize -= ke.entry.Size
		delete(c.index, ke.key)
		logger.Debugf("[synth] LRU 淘汰: %s（%d 字节）", ke.entry.Engine, ke.entry.Size)
	}

	c.saveIndexLocked()
}

// encodeSamples 将 float32 样本序列化为小端字节。
func encodeSamples(in []float32) []byte {
	out := make([]byte, len(in)*4)
	for i, s := range in {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}

// decodeSamples 将小端字节反序列化为 float32 样本。
func decodeSamples(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
