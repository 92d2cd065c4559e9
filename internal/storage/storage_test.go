package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ollamabridge/internal/core"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	fs := NewFileStorage(path)

	stats := &core.RequestStats{
		TotalRequests:      3,
		SuccessfulRequests: 2,
		FailedRequests:     1,
		TotalEvalCount:     42,
		InflatedResponses:  1,
		LastRequestTime:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RequestHistory: []core.RequestRecord{
			{Route: core.RouteGenerate, Model: "llama3:8b", Status: 200, Success: true, EvalCount: 42, Inflated: true},
		},
	}
	if err := fs.SaveStats(stats); err != nil {
		t.Fatalf("保存统计失败: %v", err)
	}

	loaded, err := fs.LoadStats()
	if err != nil {
		t.Fatalf("加载统计失败: %v", err)
	}
	if loaded.TotalRequests != 3 || loaded.TotalEvalCount != 42 || loaded.InflatedResponses != 1 {
		t.Errorf("计数不一致: %+v", loaded)
	}
	if len(loaded.RequestHistory) != 1 || loaded.RequestHistory[0].Model != "llama3:8b" {
		t.Errorf("历史记录不一致: %+v", loaded.RequestHistory)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("不应残留临时文件, 目录中有 %d 个文件", len(entries))
	}
}

func TestFileStorage_MissingFile(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "none.json"))

	stats, err := fs.LoadStats()
	if err != nil {
		t.Fatalf("文件不存在时不应报错: %v", err)
	}
	if stats.TotalRequests != 0 || stats.RequestHistory == nil {
		t.Errorf("应返回空统计: %+v", stats)
	}
}

func TestFileStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	if err := os.WriteFile(path, []byte("{broken"), core.FilePermissionReadWrite); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStorage(path).LoadStats(); err == nil {
		t.Error("损坏的文件应返回错误")
	}
}

func TestNewFileStorage_DefaultPath(t *testing.T) {
	if got := NewFileStorage("").Path(); got != core.StatsFilePath {
		t.Errorf("默认路径应为 %s, 实际 %s", core.StatsFilePath, got)
	}
}

func TestNewRedisStorage_InvalidURL(t *testing.T) {
	if _, err := NewRedisStorage(context.Background(), RedisStorageConfig{URL: "not-a-redis-url"}); err == nil {
		t.Error("无效的 Redis URL 应返回错误")
	}
}

func TestInitStorage_FallsBackToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	t.Setenv("REDIS_URL", "not-a-redis-url")
	t.Setenv("STATS_FILE", path)

	store := InitStorage(&core.NopLogger{})
	fs, ok := store.(*FileStorage)
	if !ok {
		t.Fatalf("Redis 不可用时应回退到文件存储, 实际 %T", store)
	}
	if fs.Path() != path {
		t.Errorf("应使用 STATS_FILE 路径, 实际 %s", fs.Path())
	}
}
